package messaging

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

type natsMessage struct {
	msg        *nats.Msg
	receivedAt time.Time
	requeue    func(context.Context, *nats.Msg, int) error
	responded  atomic.Bool
}

func newNATSMessage(msg *nats.Msg, receivedAt time.Time, requeue func(context.Context, *nats.Msg, int) error) *natsMessage {
	return &natsMessage{msg: msg, receivedAt: receivedAt, requeue: requeue}
}

func (m *natsMessage) hasResponded() bool   { return m.responded.Load() }
func (m *natsMessage) Body() []byte         { return m.msg.Data }
func (m *natsMessage) Key() []byte          { return []byte(m.msg.Header.Get(natsKeyHeader)) }
func (m *natsMessage) Timestamp() time.Time { return m.receivedAt }

// ID is the JetStream stream sequence when the subject is backed by a
// stream. Core NATS messages have no id.
func (m *natsMessage) ID() string {
	if md, err := m.msg.Metadata(); err == nil && md != nil {
		return md.Stream + "/" + strconv.FormatUint(md.Sequence.Stream, 10)
	}
	return ""
}

func (m *natsMessage) Headers() []Header {
	var out []Header
	for k, values := range m.msg.Header {
		if k == natsKeyHeader {
			continue
		}
		for _, v := range values {
			out = append(out, Header{Key: k, Value: []byte(v)})
		}
	}
	return out
}

func (m *natsMessage) Ack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.responded.Swap(true) {
		return nil
	}
	if err := m.msg.Ack(); err != nil && !isNATSAckUnsupported(err) {
		return err
	}
	return nil
}

// Nack uses the server's redelivery when the subject is stream-backed and
// falls back to republishing otherwise.
func (m *natsMessage) Nack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.responded.Swap(true) {
		return nil
	}
	err := m.msg.Nak()
	switch {
	case err == nil:
		return nil
	case !isNATSAckUnsupported(err):
		return err
	case m.requeue == nil:
		return nil
	}
	return m.requeue(ctx, m.msg, m.Attempts())
}

func (m *natsMessage) Attempts() int {
	if md, err := m.msg.Metadata(); err == nil && md != nil && md.NumDelivered > 0 {
		return int(md.NumDelivered)
	}
	return attemptFromHeaders(m.Headers())
}

func isNATSAckUnsupported(err error) bool {
	return errors.Is(err, nats.ErrMsgNoReply) || errors.Is(err, nats.ErrMsgNotBound)
}
