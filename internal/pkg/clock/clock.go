package clock

import "time"

type Clocker interface {
	Now() time.Time
}

// TimeClocker reads the wall clock in UTC.
type TimeClocker struct{}

func New() *TimeClocker { return &TimeClocker{} }

func (*TimeClocker) Now() time.Time { return time.Now().UTC() }

// FixedClocker is stuck at one instant.
type FixedClocker struct {
	at time.Time
}

func NewFixed(t time.Time) *FixedClocker { return &FixedClocker{at: t} }

func (f *FixedClocker) Now() time.Time { return f.at }
