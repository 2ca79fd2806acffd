package messaging

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"
)

var (
	// ErrMemoryQueueRequired is returned when the queue name is empty.
	ErrMemoryQueueRequired = errors.New("messaging: memory queue is required")
	// ErrMemoryHandlerRequired is returned when Consume is called with a nil handler.
	ErrMemoryHandlerRequired = errors.New("messaging: memory handler is required")
)

// MemoryConfig configures the in-process broker.
type MemoryConfig struct {
	// RedeliveryDelay postpones a nacked message before it is queued again.
	RedeliveryDelay time.Duration
}

// Memory is an in-process at-least-once broker. Queues are created on first
// use, nacked messages go back to the tail of their queue with the attempt
// counter bumped, and several Consume calls on the same queue compete for
// messages like consumers of a shared durable queue.
type Memory struct {
	redeliveryDelay time.Duration
	seq             atomic.Uint64

	mu     sync.Mutex
	queues map[string]*memoryQueue
	closed bool
	done   chan struct{}
}

// NewMemory constructs an in-process broker.
func NewMemory(cfg MemoryConfig) *Memory {
	return &Memory{
		redeliveryDelay: cfg.RedeliveryDelay,
		queues:          map[string]*memoryQueue{},
		done:            make(chan struct{}),
	}
}

// Close stops every running Consume call.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	return nil
}

// DeclareQueue creates an empty queue if it does not exist yet.
func (m *Memory) DeclareQueue(_ context.Context, name string) error {
	if name == "" {
		return ErrMemoryQueueRequired
	}
	_, err := m.queue(name)
	return err
}

// Depth returns the number of messages waiting in a queue.
func (m *Memory) Depth(name string) int {
	q, err := m.queue(name)
	if err != nil {
		return 0
	}
	return q.len()
}

// Publish appends a message to a queue.
func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrMemoryQueueRequired
	}
	q, err := m.queue(destination)
	if err != nil {
		return PublishResult{}, err
	}

	env := &memoryEnvelope{
		id:        strconv.FormatUint(m.seq.Inc(), 10),
		queue:     destination,
		body:      append([]byte(nil), msg.Body...),
		key:       append([]byte(nil), msg.Key...),
		headers:   append([]Header(nil), msg.Headers...),
		timestamp: time.Now(),
		attempt:   attemptFromHeaders(msg.Headers),
	}

	if msg.Delay > 0 {
		time.AfterFunc(msg.Delay, func() { q.push(env) })
	} else {
		q.push(env)
	}

	return PublishResult{
		MessageID: env.id,
		Queue:     destination,
		Timestamp: env.timestamp,
	}, nil
}

// Consume runs the receive loops for a queue until ctx is done or the broker
// is closed.
func (m *Memory) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrMemoryQueueRequired
	}
	if handler == nil {
		return ErrMemoryHandlerRequired
	}
	q, err := m.queue(source)
	if err != nil {
		return err
	}

	co := newConsumeOptions(opts...)
	d := newDispatcher("memory", source, handler, co, m)

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.done:
			cancel()
		case <-consumeCtx.Done():
		}
	}()

	var wg sync.WaitGroup
	for range co.workers() {
		wg.Go(func() {
			for {
				env, err := q.pop(consumeCtx)
				if err != nil {
					return
				}
				//nolint:errcheck // settlement on the memory broker cannot fail
				_ = d.dispatch(consumeCtx, newMemoryMessage(env, m.requeue))
			}
		})
	}
	wg.Wait()

	if m.isClosed() {
		return io.ErrClosedPipe
	}
	return ctx.Err()
}

func (m *Memory) requeue(env *memoryEnvelope) {
	q, err := m.queue(env.queue)
	if err != nil {
		return
	}
	next := *env
	next.attempt++
	if m.redeliveryDelay > 0 {
		time.AfterFunc(m.redeliveryDelay, func() { q.push(&next) })
		return
	}
	q.push(&next)
}

func (m *Memory) queue(name string) (*memoryQueue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, io.ErrClosedPipe
	}
	q, ok := m.queues[name]
	if !ok {
		q = newMemoryQueue()
		m.queues[name] = q
	}
	return q, nil
}

func (m *Memory) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type memoryEnvelope struct {
	id        string
	queue     string
	body      []byte
	key       []byte
	headers   []Header
	timestamp time.Time
	attempt   int
}

// memoryQueue is an unbounded FIFO. notify holds at most one pending wake-up.
type memoryQueue struct {
	mu     sync.Mutex
	items  []*memoryEnvelope
	notify chan struct{}
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{notify: make(chan struct{}, 1)}
}

func (q *memoryQueue) push(env *memoryEnvelope) {
	q.mu.Lock()
	q.items = append(q.items, env)
	q.mu.Unlock()
	q.wake()
}

func (q *memoryQueue) pop(ctx context.Context) (*memoryEnvelope, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			env := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				q.wake()
			}
			return env, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *memoryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *memoryQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
