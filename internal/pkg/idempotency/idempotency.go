// Package idempotency guards side effects that may be triggered more than
// once by at-least-once delivery. State lives in Redis so every consumer
// instance sees the same outcome for a key.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAlreadyInProgress = errors.New("idempotency: operation already in progress")
	ErrAlreadyCompleted  = errors.New("idempotency: operation already completed")
	ErrAlreadyFailed     = errors.New("idempotency: operation already failed")
	ErrInvalidState      = errors.New("idempotency: invalid state")
)

type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateError      State = "error"
)

func (s State) String() string { return string(s) }

// settled reports the sentinel for a state that blocks another run.
func (s State) settled() error {
	switch s {
	case StateInProgress:
		return ErrAlreadyInProgress
	case StateCompleted:
		return ErrAlreadyCompleted
	case StateFailed:
		return ErrAlreadyFailed
	}
	return nil
}

type Idempotency interface {
	Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error)
	MarkCompleted(ctx context.Context, key string, ttl time.Duration) error
	MarkFailed(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

const (
	keyPrefix           = "idempotency:"
	defaultLockDuration = time.Minute
	defaultStateTTL     = time.Minute
	acquireAttempts     = 2
)

// StateTracker implements Idempotency on Redis.
type StateTracker struct {
	rdb redis.UniversalClient
}

func New(client redis.UniversalClient) *StateTracker {
	return &StateTracker{rdb: client}
}

type Option func(*execConfig)

type execConfig struct {
	lock      time.Duration
	remember  time.Duration
	forgetErr bool
}

func newExecConfig(opts []Option) execConfig {
	c := execConfig{lock: defaultLockDuration, remember: defaultStateTTL}
	for _, opt := range opts {
		opt(&c)
	}
	if c.lock <= 0 {
		c.lock = defaultLockDuration
	}
	if c.remember <= 0 {
		c.remember = defaultStateTTL
	}
	return c
}

// WithLockDuration bounds how long a crashed worker can hold a key.
func WithLockDuration(d time.Duration) Option {
	return func(c *execConfig) { c.lock = d }
}

// WithStateTTL sets how long a completed or failed outcome is remembered.
func WithStateTTL(d time.Duration) Option {
	return func(c *execConfig) { c.remember = d }
}

// WithReleaseOnFailure forgets the key when fn fails so a redelivery can
// try again immediately, instead of recording StateFailed.
func WithReleaseOnFailure() Option {
	return func(c *execConfig) { c.forgetErr = true }
}

// Acquire takes the key when it is free, otherwise it reports the state the
// key is held in. A key that expires between the two reads is retried once.
func (s *StateTracker) Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error) {
	k := keyPrefix + key

	for range acquireAttempts {
		ok, err := s.rdb.SetNX(ctx, k, StateInProgress.String(), lockDuration).Result()
		if err != nil {
			return StateError, err
		}
		if ok {
			return StateNone, nil
		}

		current, err := s.rdb.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return StateError, err
		}

		st := State(current)
		if st.settled() == nil {
			return StateError, ErrInvalidState
		}
		return st, nil
	}

	return StateError, ErrInvalidState
}

func (s *StateTracker) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	return s.mark(ctx, key, StateCompleted, ttl)
}

func (s *StateTracker) MarkFailed(ctx context.Context, key string, ttl time.Duration) error {
	return s.mark(ctx, key, StateFailed, ttl)
}

func (s *StateTracker) mark(ctx context.Context, key string, st State, ttl time.Duration) error {
	return s.rdb.Set(ctx, keyPrefix+key, st.String(), ttl).Err()
}

// Release deletes the key regardless of its state.
func (s *StateTracker) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, keyPrefix+key).Err()
}

// Exec runs fn at most once per key within the state TTL. A key that is in
// progress, completed or failed returns the matching sentinel error without
// calling fn. Once fn has succeeded Exec returns nil even if the completed
// state cannot be stored; the key then stays in progress until its lock expires.
func (s *StateTracker) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	cfg := newExecConfig(opts)

	st, err := s.Acquire(ctx, key, cfg.lock)
	if err != nil {
		return err
	}
	if err := st.settled(); err != nil {
		return err
	}

	runErr := fn(ctx)
	if runErr == nil {
		if err := s.MarkCompleted(ctx, key, cfg.remember); err != nil {
			slog.WarnContext(ctx, "failed to mark idempotency key completed", "key", key, "error", err)
		}
		return nil
	}

	if cfg.forgetErr {
		return errors.Join(runErr, s.Release(ctx, key))
	}
	return errors.Join(runErr, s.MarkFailed(ctx, key, cfg.remember))
}
