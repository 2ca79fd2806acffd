package memory

import (
	"context"
	"testing"
	"time"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
	"github.com/pedrosfaria2/email-verifier/internal/registration/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_UpsertReplacesAndClearsConfirmation(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, s.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{Email: "a@example.com", CodeHash: "h1", CreatedAt: now}))
	require.NoError(t, s.ConfirmRegistration(ctx, entity.ConfirmRegistration{Email: "a@example.com", CodeHash: "h1", ConfirmedAt: now}))

	require.NoError(t, s.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{Email: "a@example.com", CodeHash: "h2", CreatedAt: now}))

	req, err := s.GetRegistrationRequest(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "h2", req.CodeHash)
	assert.False(t, req.IsConfirmed())
	assert.Equal(t, 1, s.CountRequests())
}

func TestStore_ConfirmGuardsCodeHash(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()

	err := s.ConfirmRegistration(ctx, entity.ConfirmRegistration{Email: "a@example.com", CodeHash: "h1", ConfirmedAt: now})
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	require.NoError(t, s.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{Email: "a@example.com", CodeHash: "h1"}))
	err = s.ConfirmRegistration(ctx, entity.ConfirmRegistration{Email: "a@example.com", CodeHash: "stale", ConfirmedAt: now})
	assert.ErrorIs(t, err, goerror.ErrNotFound)
	assert.Zero(t, s.CountRegistrations())
}

func TestStore_ConfirmIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{Email: "a@example.com", CodeHash: "h1"}))
	require.NoError(t, s.ConfirmRegistration(ctx, entity.ConfirmRegistration{Email: "a@example.com", CodeHash: "h1", ConfirmedAt: first}))
	require.NoError(t, s.ConfirmRegistration(ctx, entity.ConfirmRegistration{Email: "a@example.com", CodeHash: "h1", ConfirmedAt: first.Add(time.Hour)}))

	reg, err := s.GetRegistration(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, first, reg.ConfirmedAt)
	assert.Equal(t, 1, s.CountRegistrations())

	req, err := s.GetRegistrationRequest(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, req.ConfirmedAt)
	assert.Equal(t, first, *req.ConfirmedAt)
}

func TestStore_PurgeConfirmedRequests(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{Email: "old@example.com", CodeHash: "h"}))
	require.NoError(t, s.ConfirmRegistration(ctx, entity.ConfirmRegistration{Email: "old@example.com", CodeHash: "h", ConfirmedAt: old}))
	require.NoError(t, s.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{Email: "pending@example.com", CodeHash: "h"}))

	n, err := s.PurgeConfirmedRequests(ctx, old.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetRegistrationRequest(ctx, "old@example.com")
	assert.ErrorIs(t, err, goerror.ErrNotFound)
	_, err = s.GetRegistrationRequest(ctx, "pending@example.com")
	assert.NoError(t, err)
	_, err = s.GetRegistration(ctx, "old@example.com")
	assert.NoError(t, err)
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStore()
	assert.ErrorIs(t, s.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{Email: "a"}), context.Canceled)
	_, err := s.GetRegistrationRequest(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
