package messaging

import (
	"context"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"cloud.google.com/go/pubsub/v2"
)

type pubSubMessage struct {
	msg       *pubsub.Message
	responded atomic.Bool
}

func newPubSubMessage(msg *pubsub.Message) *pubSubMessage {
	return &pubSubMessage{msg: msg}
}

func (m *pubSubMessage) hasResponded() bool   { return m.responded.Load() }
func (m *pubSubMessage) Body() []byte         { return m.msg.Data }
func (m *pubSubMessage) Key() []byte          { return []byte(m.msg.Attributes[pubSubKeyAttribute]) }
func (m *pubSubMessage) ID() string           { return m.msg.ID }
func (m *pubSubMessage) Timestamp() time.Time { return m.msg.PublishTime }

// Headers are sorted by key; Pub/Sub attributes have no order.
func (m *pubSubMessage) Headers() []Header {
	var out []Header
	for _, k := range slices.Sorted(maps.Keys(m.msg.Attributes)) {
		if k != pubSubKeyAttribute {
			out = append(out, Header{Key: k, Value: []byte(m.msg.Attributes[k])})
		}
	}
	return out
}

// Attempts is only populated when the subscription has a dead-letter policy;
// otherwise every delivery looks like the first.
func (m *pubSubMessage) Attempts() int {
	if m.msg.DeliveryAttempt != nil {
		return *m.msg.DeliveryAttempt
	}
	return 1
}

func (m *pubSubMessage) Ack(ctx context.Context) error {
	return m.settle(ctx, m.msg.Ack)
}

func (m *pubSubMessage) Nack(ctx context.Context) error {
	return m.settle(ctx, m.msg.Nack)
}

func (m *pubSubMessage) settle(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.responded.Swap(true) {
		fn()
	}
	return nil
}
