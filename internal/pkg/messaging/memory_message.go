package messaging

import (
	"context"
	"sync/atomic"
	"time"
)

type memoryMessage struct {
	env       *memoryEnvelope
	requeue   func(*memoryEnvelope)
	responded atomic.Bool
}

func newMemoryMessage(env *memoryEnvelope, requeue func(*memoryEnvelope)) *memoryMessage {
	return &memoryMessage{env: env, requeue: requeue}
}

func (m *memoryMessage) hasResponded() bool   { return m.responded.Load() }
func (m *memoryMessage) Body() []byte         { return m.env.body }
func (m *memoryMessage) Key() []byte          { return m.env.key }
func (m *memoryMessage) Headers() []Header    { return m.env.headers }
func (m *memoryMessage) ID() string           { return m.env.id }
func (m *memoryMessage) Timestamp() time.Time { return m.env.timestamp }
func (m *memoryMessage) Attempts() int        { return m.env.attempt }

// Ack and Nack ignore ctx: the envelope has already left the queue, so a
// settlement must never be dropped on shutdown.
func (m *memoryMessage) Ack(context.Context) error {
	m.responded.Store(true)
	return nil
}

func (m *memoryMessage) Nack(context.Context) error {
	if !m.responded.Swap(true) {
		m.requeue(m.env)
	}
	return nil
}
