package messaging

import (
	"context"
	"testing"
	"time"

	nsq "github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nsqTestID() nsq.MessageID {
	var id nsq.MessageID
	copy(id[:], "0123456789abcdef")
	return id
}

func TestNSQEnvelope_CarriesKeyAndHeaders(t *testing.T) {
	body, err := encodeNSQBody(OutgoingMessage{
		Body:    []byte(`{"email":"a@example.com"}`),
		Key:     []byte("42"),
		Headers: []Header{{Key: "cID", Value: []byte("cid-1")}},
	})
	require.NoError(t, err)

	msg := newNSQMessage(nsq.NewMessage(nsqTestID(), body))
	assert.JSONEq(t, `{"email":"a@example.com"}`, string(msg.Body()))
	assert.Equal(t, []byte("42"), msg.Key())
	assert.Equal(t, []Header{{Key: "cID", Value: []byte("cid-1")}}, msg.Headers())
	assert.Equal(t, "30313233343536373839616263646566", msg.ID())
}

func TestNSQEnvelope_PlainBodyPassesThrough(t *testing.T) {
	body, err := encodeNSQBody(OutgoingMessage{Body: []byte("plain")})
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), body)

	msg := newNSQMessage(nsq.NewMessage(nsqTestID(), []byte("plain")))
	assert.Equal(t, []byte("plain"), msg.Body())
	assert.Nil(t, msg.Headers())
	assert.Nil(t, msg.Key())
}

func TestNSQEnvelope_CorruptEnvelopeKeepsRawBody(t *testing.T) {
	raw := append(append([]byte{}, nsqEnvelopePrefix...), []byte("{not json")...)
	msg := newNSQMessage(nsq.NewMessage(nsqTestID(), raw))
	assert.Equal(t, raw, msg.Body())
}

type recordingDelegate struct {
	finished, requeued int
}

func (d *recordingDelegate) OnFinish(*nsq.Message)                       { d.finished++ }
func (d *recordingDelegate) OnRequeue(*nsq.Message, time.Duration, bool) { d.requeued++ }
func (d *recordingDelegate) OnTouch(*nsq.Message)                        {}

func TestNSQMessage_RespondsOnce(t *testing.T) {
	d := &recordingDelegate{}
	m := nsq.NewMessage(nsqTestID(), []byte("x"))
	m.Delegate = d
	m.DisableAutoResponse()
	msg := newNSQMessage(m)

	require.NoError(t, msg.Ack(context.Background()))
	require.NoError(t, msg.Nack(context.Background()))

	assert.True(t, msg.hasResponded())
	assert.Equal(t, 1, d.finished)
	assert.Equal(t, 0, d.requeued)
}

func TestNSQMessage_CancelledContextRequeues(t *testing.T) {
	d := &recordingDelegate{}
	m := nsq.NewMessage(nsqTestID(), []byte("x"))
	m.Delegate = d
	m.DisableAutoResponse()
	msg := newNSQMessage(m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, msg.Ack(ctx), context.Canceled)

	assert.True(t, msg.hasResponded())
	assert.Equal(t, 0, d.finished)
	assert.Equal(t, 1, d.requeued)
}
