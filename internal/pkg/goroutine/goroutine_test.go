package goroutine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CollectsErrors(t *testing.T) {
	m := NewManager(4)
	boom := errors.New("boom")

	var ran atomic.Int32
	m.Go(context.Background(), func(context.Context) error {
		ran.Add(1)
		return nil
	})
	m.Go(context.Background(), func(context.Context) error {
		ran.Add(1)
		return boom
	})

	err := m.Wait()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), ran.Load())
}

func TestManager_RecoversPanic(t *testing.T) {
	m := NewManager(1)
	m.Go(context.Background(), func(context.Context) error {
		panic("kaboom")
	})

	err := m.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestManager_LimitReached(t *testing.T) {
	m := NewManager(1)
	release := make(chan struct{})

	m.Go(context.Background(), func(context.Context) error {
		<-release
		return nil
	})

	var second atomic.Bool
	m.Go(context.Background(), func(context.Context) error {
		second.Store(true)
		return nil
	})

	close(release)
	require.NoError(t, m.Wait())
	assert.False(t, second.Load())
}

func TestManager_ClosedAfterWait(t *testing.T) {
	m := NewManager(2)
	require.NoError(t, m.Wait())

	var ran atomic.Bool
	m.Go(context.Background(), func(context.Context) error {
		ran.Store(true)
		return nil
	})
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestManager_CanceledContextSkipsTask(t *testing.T) {
	m := NewManager(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	m.Go(ctx, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, m.Wait())
	assert.False(t, ran.Load())
}

func TestManager_Nil(t *testing.T) {
	var m *Manager
	m.Go(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, m.Wait())
}
