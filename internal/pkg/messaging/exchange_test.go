package messaging

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// recordingBroker captures every publish per queue.
type recordingBroker struct {
	published map[string][]OutgoingMessage
	err       error
	declared  []string
}

func newRecordingBroker() *recordingBroker {
	return &recordingBroker{published: map[string][]OutgoingMessage{}}
}

func (b *recordingBroker) Close() error { return nil }

func (b *recordingBroker) Publish(_ context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if b.err != nil {
		return PublishResult{}, b.err
	}
	b.published[destination] = append(b.published[destination], msg)
	return PublishResult{Queue: destination}, nil
}

func (b *recordingBroker) Consume(context.Context, string, Handler, ...ConsumeOption) error {
	return nil
}

func (b *recordingBroker) DeclareQueue(_ context.Context, name string) error {
	b.declared = append(b.declared, name)
	return nil
}

type ExchangeSuite struct {
	suite.Suite

	ctx      context.Context
	broker   *recordingBroker
	registry *MemoryRegistry
	ex       *Exchange
}

func TestExchangeSuite(t *testing.T) {
	suite.Run(t, new(ExchangeSuite))
}

func (s *ExchangeSuite) SetupTest() {
	s.ctx = context.Background()
	s.broker = newRecordingBroker()
	s.registry = NewMemoryRegistry()
	s.ex = NewExchange(s.broker, s.registry)
}

func (s *ExchangeSuite) TestDeclareTopicIsIdempotent() {
	s.Require().NoError(s.ex.DeclareTopic(s.ctx, "notifications", TopicDirect))
	s.Require().NoError(s.ex.DeclareTopic(s.ctx, "notifications", TopicDirect))

	err := s.ex.DeclareTopic(s.ctx, "notifications", TopicPartitioned)
	s.ErrorIs(err, ErrTopicKindMismatch)

	s.ErrorIs(s.ex.DeclareTopic(s.ctx, "x", TopicKind("fanout")), ErrInvalidTopicKind)
	s.ErrorIs(s.ex.DeclareTopic(s.ctx, "", TopicDirect), ErrNameRequired)
}

func (s *ExchangeSuite) TestDeclareQueueDelegatesToBroker() {
	s.Require().NoError(s.ex.DeclareQueue(s.ctx, "q1"))
	s.Equal([]string{"q1"}, s.broker.declared)
}

func (s *ExchangeSuite) TestBindUnknownTopic() {
	s.ErrorIs(s.ex.Bind(s.ctx, "missing", "q", "42"), ErrTopicNotFound)
}

func (s *ExchangeSuite) TestBindPartitionedRequiresWeight() {
	s.Require().NoError(s.ex.DeclareTopic(s.ctx, "requests", TopicPartitioned))
	s.ErrorIs(s.ex.Bind(s.ctx, "requests", "q", "abc"), ErrInvalidWeight)
	s.ErrorIs(s.ex.Bind(s.ctx, "requests", "q", "0"), ErrInvalidWeight)
	s.NoError(s.ex.Bind(s.ctx, "requests", "q", "42"))
	s.NoError(s.ex.Bind(s.ctx, "requests", "q", "42"))
}

func (s *ExchangeSuite) TestRebindReplacesWeight() {
	s.Require().NoError(s.ex.DeclareTopic(s.ctx, "requests", TopicPartitioned))
	s.Require().NoError(s.ex.Bind(s.ctx, "requests", "a", "42"))
	s.Require().NoError(s.ex.Bind(s.ctx, "requests", "b", "42"))
	s.Require().NoError(s.ex.Bind(s.ctx, "requests", "a", "1"))

	bindings, err := s.registry.Bindings(s.ctx, "requests")
	s.Require().NoError(err)
	s.ElementsMatch([]Binding{
		{Topic: "requests", Queue: "a", Key: "1"},
		{Topic: "requests", Queue: "b", Key: "42"},
	}, bindings)

	rt, err := s.ex.load(s.ctx, "requests")
	s.Require().NoError(err)
	points := map[string]int{}
	for _, p := range rt.ring.points {
		points[p.queue]++
	}
	s.Equal(map[string]int{"a": 1, "b": 42}, points)
}

func (s *ExchangeSuite) TestUnbindPartitionedRemovesQueueFromRing() {
	s.Require().NoError(s.ex.DeclareTopic(s.ctx, "requests", TopicPartitioned))
	s.Require().NoError(s.ex.Bind(s.ctx, "requests", "a", "42"))
	s.Require().NoError(s.ex.Bind(s.ctx, "requests", "b", "42"))

	s.Require().NoError(s.ex.Unbind(s.ctx, "requests", "a", ""))
	s.Require().NoError(s.ex.Unbind(s.ctx, "requests", "a", ""))

	for i := range 50 {
		s.Require().NoError(s.ex.Publish(s.ctx, "requests", fmt.Sprintf("key-%d", i), OutgoingMessage{}))
	}
	s.Empty(s.broker.published["a"])
	s.Len(s.broker.published["b"], 50)
}

func (s *ExchangeSuite) TestUnbindDirectRemovesOnlyThatKey() {
	s.Require().NoError(s.ex.DeclareTopic(s.ctx, "notifications", TopicDirect))
	s.Require().NoError(s.ex.Bind(s.ctx, "notifications", "mailer", "42"))
	s.Require().NoError(s.ex.Bind(s.ctx, "notifications", "audit", "42"))
	s.Require().NoError(s.ex.Bind(s.ctx, "notifications", "audit", "7"))

	s.Require().NoError(s.ex.Unbind(s.ctx, "notifications", "audit", "42"))

	s.Require().NoError(s.ex.Publish(s.ctx, "notifications", "42", OutgoingMessage{}))
	s.Require().NoError(s.ex.Publish(s.ctx, "notifications", "7", OutgoingMessage{}))
	s.Len(s.broker.published["mailer"], 1)
	s.Len(s.broker.published["audit"], 1)

	s.ErrorIs(s.ex.Unbind(s.ctx, "missing", "q", "42"), ErrTopicNotFound)
	s.ErrorIs(s.ex.Unbind(s.ctx, "notifications", "", "42"), ErrNameRequired)
}

func (s *ExchangeSuite) TestDirectDeliversToEveryQueueWithKey() {
	s.Require().NoError(s.ex.DeclareTopic(s.ctx, "notifications", TopicDirect))
	s.Require().NoError(s.ex.Bind(s.ctx, "notifications", "mailer", "42"))
	s.Require().NoError(s.ex.Bind(s.ctx, "notifications", "audit", "42"))
	s.Require().NoError(s.ex.Bind(s.ctx, "notifications", "other", "7"))

	err := s.ex.Publish(s.ctx, "notifications", "42", OutgoingMessage{Body: []byte("hi")})
	s.Require().NoError(err)

	s.Len(s.broker.published["mailer"], 1)
	s.Len(s.broker.published["audit"], 1)
	s.Empty(s.broker.published["other"])

	msg := s.broker.published["mailer"][0]
	s.Equal("42", string(msg.Key))
	s.Contains(msg.Headers, Header{Key: HeaderTopic, Value: []byte("notifications")})
}

func (s *ExchangeSuite) TestDirectUnroutable() {
	s.Require().NoError(s.ex.DeclareTopic(s.ctx, "notifications", TopicDirect))
	s.Require().NoError(s.ex.Bind(s.ctx, "notifications", "mailer", "42"))

	err := s.ex.Publish(s.ctx, "notifications", "nope", OutgoingMessage{})
	s.ErrorIs(err, ErrUnroutable)
}

func (s *ExchangeSuite) TestPublishUnknownTopic() {
	err := s.ex.Publish(s.ctx, "missing", "k", OutgoingMessage{})
	s.ErrorIs(err, ErrTopicNotFound)
}

func (s *ExchangeSuite) TestPartitionedAffinity() {
	s.Require().NoError(s.ex.DeclareTopic(s.ctx, "requests", TopicPartitioned))
	for _, q := range []string{"req-1", "req-2", "req-3"} {
		s.Require().NoError(s.ex.Bind(s.ctx, "requests", q, "42"))
	}

	owner := map[string]string{}
	for round := range 3 {
		for i := range 50 {
			key := fmt.Sprintf("key-%d", i)
			s.broker.published = map[string][]OutgoingMessage{}
			s.Require().NoError(s.ex.Publish(s.ctx, "requests", key, OutgoingMessage{Body: []byte(key)}))

			s.Require().Len(s.broker.published, 1, "partitioned publish reaches exactly one queue")
			for q := range s.broker.published {
				if round == 0 {
					owner[key] = q
					continue
				}
				s.Equal(owner[key], q, "key %s moved between publishes", key)
			}
		}
	}
}

func (s *ExchangeSuite) TestPartitionedWithoutBindings() {
	s.Require().NoError(s.ex.DeclareTopic(s.ctx, "requests", TopicPartitioned))
	s.ErrorIs(s.ex.Publish(s.ctx, "requests", "k", OutgoingMessage{}), ErrUnroutable)
}

func (s *ExchangeSuite) TestBrokerFailureIsWrapped() {
	s.Require().NoError(s.ex.DeclareTopic(s.ctx, "notifications", TopicDirect))
	s.Require().NoError(s.ex.Bind(s.ctx, "notifications", "mailer", "42"))

	cause := errors.New("connection refused")
	s.broker.err = cause
	s.ErrorIs(s.ex.Publish(s.ctx, "notifications", "42", OutgoingMessage{}), cause)
}

func TestExchange_RouteCacheRefreshesOnBind(t *testing.T) {
	ctx := context.Background()
	broker := newRecordingBroker()
	ex := NewExchange(broker, NewMemoryRegistry(), WithRouteCacheTTL(time.Hour))

	require.NoError(t, ex.DeclareTopic(ctx, "t", TopicDirect))
	require.NoError(t, ex.Bind(ctx, "t", "a", "k"))
	require.NoError(t, ex.Publish(ctx, "t", "k", OutgoingMessage{}))

	require.NoError(t, ex.Bind(ctx, "t", "b", "k"))
	require.NoError(t, ex.Publish(ctx, "t", "k", OutgoingMessage{}))

	assert.Len(t, broker.published["a"], 2)
	assert.Len(t, broker.published["b"], 1)
}

func TestExchange_RouteCacheRefreshesOnUnbind(t *testing.T) {
	ctx := context.Background()
	broker := newRecordingBroker()
	ex := NewExchange(broker, NewMemoryRegistry(), WithRouteCacheTTL(time.Hour))

	require.NoError(t, ex.DeclareTopic(ctx, "t", TopicDirect))
	require.NoError(t, ex.Bind(ctx, "t", "a", "k"))
	require.NoError(t, ex.Bind(ctx, "t", "b", "k"))
	require.NoError(t, ex.Publish(ctx, "t", "k", OutgoingMessage{}))

	require.NoError(t, ex.Unbind(ctx, "t", "b", "k"))
	require.NoError(t, ex.Publish(ctx, "t", "k", OutgoingMessage{}))

	assert.Len(t, broker.published["a"], 2)
	assert.Len(t, broker.published["b"], 1)
}

func TestExchange_SubscribeOverMemoryBroker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := NewMemory(MemoryConfig{})
	defer mem.Close()
	ex := NewExchange(mem, NewMemoryRegistry())

	require.NoError(t, ex.DeclareTopic(ctx, "t", TopicPartitioned))
	require.NoError(t, ex.DeclareQueue(ctx, "q"))
	require.NoError(t, ex.Bind(ctx, "t", "q", "1"))

	got := make(chan string, 1)
	go func() {
		_ = ex.Subscribe(ctx, "q", func(_ context.Context, msg Message) error {
			got <- string(msg.Body()) + "|" + string(msg.Key())
			return nil
		}, WithAutoAck(true))
	}()

	require.NoError(t, ex.Publish(ctx, "t", "rk", OutgoingMessage{Body: []byte("payload")}))

	select {
	case v := <-got:
		assert.Equal(t, "payload|rk", v)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}
