package messaging

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	nsq "github.com/nsqio/go-nsq"
)

// NSQ frames carry only a body, so keys and headers such as the correlation
// ID travel in a small envelope. Bodies without the prefix are delivered as is
// so topics shared with plain NSQ producers keep working.
var nsqEnvelopePrefix = []byte("ev1\x00")

type nsqEnvelope struct {
	Key     []byte            `json:"k,omitempty"`
	Headers []nsqEnvelopePair `json:"h,omitempty"`
	Body    []byte            `json:"b"`
}

type nsqEnvelopePair struct {
	K string `json:"k"`
	V []byte `json:"v"`
}

func encodeNSQBody(msg OutgoingMessage) ([]byte, error) {
	if len(msg.Key) == 0 && len(msg.Headers) == 0 {
		return msg.Body, nil
	}

	env := nsqEnvelope{Key: msg.Key, Body: msg.Body}
	for _, h := range msg.Headers {
		env.Headers = append(env.Headers, nsqEnvelopePair{K: h.Key, V: h.Value})
	}

	b, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, nsqEnvelopePrefix...), b...), nil
}

func decodeNSQBody(raw []byte) nsqEnvelope {
	rest, ok := bytes.CutPrefix(raw, nsqEnvelopePrefix)
	if !ok {
		return nsqEnvelope{Body: raw}
	}
	var env nsqEnvelope
	if err := json.Unmarshal(rest, &env); err != nil {
		return nsqEnvelope{Body: raw}
	}
	return env
}

type nsqMessage struct {
	msg       *nsq.Message
	env       nsqEnvelope
	responded atomic.Bool
}

func newNSQMessage(msg *nsq.Message) *nsqMessage {
	return &nsqMessage{msg: msg, env: decodeNSQBody(msg.Body)}
}

func (m *nsqMessage) hasResponded() bool { return m.responded.Load() }

func (m *nsqMessage) Body() []byte { return m.env.Body }
func (m *nsqMessage) Key() []byte  { return m.env.Key }

func (m *nsqMessage) Headers() []Header {
	if len(m.env.Headers) == 0 {
		return nil
	}
	out := make([]Header, 0, len(m.env.Headers))
	for _, h := range m.env.Headers {
		out = append(out, Header{Key: h.K, Value: h.V})
	}
	return out
}

func (m *nsqMessage) ID() string           { return hex.EncodeToString(m.msg.ID[:]) }
func (m *nsqMessage) Timestamp() time.Time { return time.Unix(0, m.msg.Timestamp) }
func (m *nsqMessage) Attempts() int        { return int(m.msg.Attempts) }

func (m *nsqMessage) Ack(ctx context.Context) error {
	return m.respond(ctx, m.msg.Finish)
}

// Nack requeues with nsqd's attempt-based backoff so a failing mailer is not
// hammered by immediate redeliveries.
func (m *nsqMessage) Nack(ctx context.Context) error {
	return m.respond(ctx, m.requeue)
}

func (m *nsqMessage) requeue() { m.msg.Requeue(-1) }

// respond settles the message once. A cancelled ctx still requeues: go-nsq
// will not stop a consumer while it holds unanswered messages.
func (m *nsqMessage) respond(ctx context.Context, fn func()) error {
	if m.responded.Swap(true) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		m.requeue()
		return err
	}
	fn()
	return nil
}
