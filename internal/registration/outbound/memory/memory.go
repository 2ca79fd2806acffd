// Package memory keeps registration state in process memory. It backs local
// runs without Postgres and the module tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
	"github.com/pedrosfaria2/email-verifier/internal/registration/entity"
)

type Store struct {
	mu            sync.RWMutex
	requests      map[string]entity.RegistrationRequest
	registrations map[string]entity.Registration
}

func NewStore() *Store {
	return &Store{
		requests:      map[string]entity.RegistrationRequest{},
		registrations: map[string]entity.Registration{},
	}
}

func (s *Store) GetRegistrationRequest(ctx context.Context, email string) (*entity.RegistrationRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[email]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	if req.ConfirmedAt != nil {
		at := *req.ConfirmedAt
		req.ConfirmedAt = &at
	}
	return &req, nil
}

func (s *Store) GetRegistration(ctx context.Context, email string) (*entity.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.registrations[email]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &reg, nil
}

func (s *Store) UpsertRegistrationRequest(ctx context.Context, req entity.RegistrationRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req.ConfirmedAt = nil
	s.requests[req.Email] = req
	return nil
}

func (s *Store) ConfirmRegistration(ctx context.Context, data entity.ConfirmRegistration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[data.Email]
	if !ok || req.CodeHash != data.CodeHash {
		return goerror.ErrNotFound
	}

	if _, exists := s.registrations[data.Email]; !exists {
		s.registrations[data.Email] = entity.Registration{Email: data.Email, ConfirmedAt: data.ConfirmedAt}
	}
	if req.ConfirmedAt == nil {
		at := data.ConfirmedAt
		req.ConfirmedAt = &at
		s.requests[data.Email] = req
	}
	return nil
}

func (s *Store) PurgeConfirmedRequests(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for email, req := range s.requests {
		if req.ConfirmedAt != nil && req.ConfirmedAt.Before(before) {
			delete(s.requests, email)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// CountRequests returns the number of pending rows, confirmed or not.
func (s *Store) CountRequests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

// CountRegistrations returns the number of confirmed registrations.
func (s *Store) CountRegistrations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registrations)
}
