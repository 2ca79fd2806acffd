package messaging

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

type kafkaMessage struct {
	msg       kafka.Message
	commit    func(context.Context, kafka.Message) error
	requeue   func(context.Context, kafka.Message) error
	responded atomic.Bool
}

func newKafkaMessage(msg kafka.Message, commit, requeue func(context.Context, kafka.Message) error) *kafkaMessage {
	return &kafkaMessage{msg: msg, commit: commit, requeue: requeue}
}

func (m *kafkaMessage) hasResponded() bool   { return m.responded.Load() }
func (m *kafkaMessage) Body() []byte         { return m.msg.Value }
func (m *kafkaMessage) Key() []byte          { return m.msg.Key }
func (m *kafkaMessage) Timestamp() time.Time { return m.msg.Time }
func (m *kafkaMessage) Attempts() int        { return attemptFromHeaders(m.Headers()) }

func (m *kafkaMessage) ID() string {
	return fmt.Sprintf("%s/%d/%d", m.msg.Topic, m.msg.Partition, m.msg.Offset)
}

func (m *kafkaMessage) Headers() []Header {
	if len(m.msg.Headers) == 0 {
		return nil
	}
	out := make([]Header, 0, len(m.msg.Headers))
	for _, h := range m.msg.Headers {
		out = append(out, Header{Key: h.Key, Value: h.Value})
	}
	return out
}

func (m *kafkaMessage) Ack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.responded.Swap(true) {
		return nil
	}
	return m.commit(ctx, m.msg)
}

// Nack appends a copy to the topic and commits the original offset. Kafka
// cannot redeliver a single message without stalling the partition.
func (m *kafkaMessage) Nack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.responded.Swap(true) {
		return nil
	}
	if m.requeue != nil {
		if err := m.requeue(ctx, m.msg); err != nil {
			return err
		}
	}
	return m.commit(ctx, m.msg)
}
