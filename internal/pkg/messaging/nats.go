package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

var (
	ErrNATSSubjectRequired = errors.New("messaging: nats subject is required")
	ErrNATSURLRequired     = errors.New("messaging: nats url is required")
	ErrNATSHandlerRequired = errors.New("messaging: nats handler is required")
)

// natsKeyHeader carries OutgoingMessage.Key, which core NATS has no field for.
const natsKeyHeader = "x-routing-key"

type NATSConfig struct {
	URL     string
	Options []nats.Option
}

// NATS uses core NATS queue groups, one subject per queue. The server does
// not redeliver, so a nacked message is republished with its attempt header
// bumped; see requeue.
type NATS struct {
	conn *nats.Conn

	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	running sync.WaitGroup
}

func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}
	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}
	return &NATS{conn: conn, done: make(chan struct{})}, nil
}

// Close stops every Consume call, waiting for their running handlers, then
// flushes pending publishes and closes the connection.
func (n *NATS) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.done)
	n.mu.Unlock()

	n.running.Wait()
	err := n.conn.Flush()
	if errors.Is(err, nats.ErrConnectionClosed) {
		err = nil
	}
	n.conn.Close()
	return err
}

// Publish flushes before returning so a nil error means the server has the
// message.
func (n *NATS) Publish(ctx context.Context, subject string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if subject == "" {
		return PublishResult{}, ErrNATSSubjectRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	nmsg := nats.NewMsg(subject)
	nmsg.Data = msg.Body
	if len(msg.Key) > 0 {
		nmsg.Header.Set(natsKeyHeader, string(msg.Key))
	}
	for _, h := range msg.Headers {
		if h.Key != "" {
			nmsg.Header.Add(h.Key, string(h.Value))
		}
	}

	if err := n.conn.PublishMsg(nmsg); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats publish: %w", err)
	}
	if err := n.conn.Flush(); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats flush: %w", err)
	}

	return PublishResult{Queue: subject, Timestamp: time.Now()}, nil
}

// Consume joins the queue group named by WithGroup. Deliveries are handed to
// a fixed set of workers; the subscription callback only enqueues.
func (n *NATS) Consume(ctx context.Context, subject string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if subject == "" {
		return ErrNATSSubjectRequired
	}
	if handler == nil {
		return ErrNATSHandlerRequired
	}

	co := newConsumeOptions(opts...)
	d := newDispatcher("nats", subject, handler, co, n)
	inbox := make(chan *nats.Msg, co.workers())
	quit := make(chan struct{})

	sub, err := n.conn.QueueSubscribe(subject, co.group, func(m *nats.Msg) {
		select {
		case inbox <- m:
		case <-quit:
		}
	})
	if err != nil {
		return fmt.Errorf("messaging: nats subscribe: %w", err)
	}

	var wg sync.WaitGroup
	for range co.workers() {
		wg.Go(func() {
			for {
				select {
				case m := <-inbox:
					if err := d.dispatch(ctx, newNATSMessage(m, time.Now(), n.requeue)); err != nil {
						slog.WarnContext(ctx, "failed to settle nats message", "subject", subject, "error", err)
					}
				case <-quit:
					return
				}
			}
		})
	}

	// stop unsubscribes and waits for the handlers already running. Core NATS
	// does not redeliver what is still buffered in inbox.
	stop := func() error {
		err := sub.Unsubscribe()
		if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
			err = nil
		}
		close(quit)
		wg.Wait()
		return err
	}

	if err := n.track(); err != nil {
		return errors.Join(err, stop())
	}
	defer n.running.Done()

	if err := n.conn.Flush(); err != nil {
		return errors.Join(fmt.Errorf("messaging: nats flush: %w", err), stop())
	}

	select {
	case <-ctx.Done():
		return errors.Join(ctx.Err(), stop())
	case <-n.done:
		return errors.Join(io.ErrClosedPipe, stop())
	}
}

func (n *NATS) track() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return io.ErrClosedPipe
	}
	n.running.Add(1)
	return nil
}

// requeue republishes a message at the tail of its subject with the attempt
// header set to attempt+1.
func (n *NATS) requeue(ctx context.Context, m *nats.Msg, attempt int) error {
	var headers []Header
	var key []byte
	for k, values := range m.Header {
		for _, v := range values {
			if k == natsKeyHeader {
				key = []byte(v)
				continue
			}
			headers = append(headers, Header{Key: k, Value: []byte(v)})
		}
	}
	_, err := n.Publish(ctx, m.Subject, OutgoingMessage{
		Body:    m.Data,
		Key:     key,
		Headers: withAttempt(headers, attempt+1),
	})
	return err
}
