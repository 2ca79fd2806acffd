package entity

import "time"

// RegistrationRequest is a pending registration. Only the keyed hash of the
// confirmation code is stored.
type RegistrationRequest struct {
	Email       string
	CodeHash    string
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}

// IsConfirmed reports whether the request was already confirmed.
func (r RegistrationRequest) IsConfirmed() bool {
	return r.ConfirmedAt != nil
}

// Registration is a confirmed email.
type Registration struct {
	Email       string
	ConfirmedAt time.Time
}

// ConfirmRegistration promotes a pending request. The registration is only
// created when absent and the pending row is marked confirmed at ConfirmedAt.
type ConfirmRegistration struct {
	Email       string
	CodeHash    string
	ConfirmedAt time.Time
}
