package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T) (*StateTracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestExec_RunsOnce(t *testing.T) {
	ctx := context.Background()
	tr, mr := newTracker(t)

	calls := 0
	fn := func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, tr.Exec(ctx, "k", fn))
	assert.ErrorIs(t, tr.Exec(ctx, "k", fn), ErrAlreadyCompleted)
	assert.Equal(t, 1, calls)

	got, err := mr.Get("idempotency:k")
	require.NoError(t, err)
	assert.Equal(t, "completed", got)
}

func TestExec_CompletedStateExpires(t *testing.T) {
	ctx := context.Background()
	tr, mr := newTracker(t)

	calls := 0
	fn := func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, tr.Exec(ctx, "k", fn, WithStateTTL(time.Second)))
	mr.FastForward(2 * time.Second)
	require.NoError(t, tr.Exec(ctx, "k", fn, WithStateTTL(time.Second)))
	assert.Equal(t, 2, calls)
}

func TestExec_FailureIsRemembered(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t)

	boom := errors.New("smtp down")
	err := tr.Exec(ctx, "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = tr.Exec(ctx, "k", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrAlreadyFailed)
}

func TestExec_ReleaseOnFailureAllowsRetry(t *testing.T) {
	ctx := context.Background()
	tr, mr := newTracker(t)

	boom := errors.New("smtp down")
	err := tr.Exec(ctx, "k", func(context.Context) error { return boom }, WithReleaseOnFailure())
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("idempotency:k"))

	require.NoError(t, tr.Exec(ctx, "k", func(context.Context) error { return nil }, WithReleaseOnFailure()))
}

func TestExec_InProgress(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t)

	state, err := tr.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)

	err = tr.Exec(ctx, "k", func(context.Context) error {
		t.Fatal("must not run while locked")
		return nil
	})
	assert.ErrorIs(t, err, ErrAlreadyInProgress)
}

func TestExec_SuccessSurvivesMarkFailure(t *testing.T) {
	ctx := context.Background()
	tr, mr := newTracker(t)

	calls := 0
	err := tr.Exec(ctx, "k", func(context.Context) error {
		calls++
		mr.Close()
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestAcquire_InvalidState(t *testing.T) {
	ctx := context.Background()
	tr, mr := newTracker(t)

	require.NoError(t, mr.Set("idempotency:k", "garbage"))
	state, err := tr.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateError, state)
}

func TestAcquire_RedisDown(t *testing.T) {
	ctx := context.Background()
	tr, mr := newTracker(t)
	mr.Close()

	state, err := tr.Acquire(ctx, "k", time.Minute)
	assert.Error(t, err)
	assert.Equal(t, StateError, state)
}
