// Package goroutine runs the service's long-lived background work: message
// consumers and the purge job. Every task shares one bounded pool so shutdown
// can wait for all of them at once.
package goroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/stacktrace"
)

var ErrPanic = errors.New("goroutine: task panicked")

// DefaultMaxGoroutine is multiplied by NumCPU when NewManager gets no limit.
const DefaultMaxGoroutine int = 100

type Manager struct {
	wg   sync.WaitGroup
	sema chan struct{}

	// gate is held for reading while a task is being admitted and for
	// writing by Wait, so no task can slip in after Wait starts.
	gate   sync.RWMutex
	closed bool

	errMu sync.Mutex
	errs  []error
}

func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}
	return &Manager{sema: make(chan struct{}, maxGoroutine)}
}

// Go runs f in its own goroutine. It is a no-op, with a warning, when the
// pool is full or Wait has been called. A ctx that is already done skips f.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) {
	if g == nil {
		return
	}

	g.gate.RLock()
	defer g.gate.RUnlock()

	if g.closed {
		slog.WarnContext(ctx, "goroutine manager closed, task dropped")
		return
	}

	select {
	case g.sema <- struct{}{}:
	default:
		slog.WarnContext(ctx, "goroutine limit reached, task dropped", "limit", cap(g.sema))
		return
	}

	g.wg.Add(1)
	go g.run(ctx, f)
}

func (g *Manager) run(ctx context.Context, f func(ctx context.Context) error) {
	defer g.wg.Done()
	defer func() { <-g.sema }()
	defer func() {
		if rvr := recover(); rvr != nil {
			g.record(fmt.Errorf("%w: %v", ErrPanic, rvr))
			slog.ErrorContext(ctx, "background task panicked", "panic", rvr, "stack", stacktrace.Frames(debug.Stack()))
		}
	}()

	if err := ctx.Err(); err != nil {
		slog.WarnContext(ctx, "background task skipped", "error", err)
		return
	}
	if err := f(ctx); err != nil {
		g.record(err)
	}
}

func (g *Manager) record(err error) {
	g.errMu.Lock()
	g.errs = append(g.errs, err)
	g.errMu.Unlock()
}

// Wait stops admitting tasks, blocks until running ones return and joins
// their errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.gate.Lock()
	g.closed = true
	g.gate.Unlock()

	g.wg.Wait()

	g.errMu.Lock()
	defer g.errMu.Unlock()
	return errors.Join(g.errs...)
}
