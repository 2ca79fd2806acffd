package messaging

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRegistry(client, "test:"), mr
}

func TestRedisRegistry_Topics(t *testing.T) {
	ctx := context.Background()
	reg, mr := newRedisRegistry(t)

	_, err := reg.Topic(ctx, "t")
	assert.ErrorIs(t, err, ErrTopicNotFound)

	kind, err := reg.PutTopic(ctx, "t", TopicPartitioned)
	require.NoError(t, err)
	assert.Equal(t, TopicPartitioned, kind)

	kind, err = reg.PutTopic(ctx, "t", TopicDirect)
	require.NoError(t, err)
	assert.Equal(t, TopicPartitioned, kind, "first declaration wins")

	assert.Equal(t, "partitioned", mr.HGet("test:topics", "t"))
}

func TestRedisRegistry_Bindings(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRedisRegistry(t)

	require.NoError(t, reg.PutBinding(ctx, Binding{Topic: "t", Queue: "q2", Key: "42"}))
	require.NoError(t, reg.PutBinding(ctx, Binding{Topic: "t", Queue: "q1", Key: "42"}))
	require.NoError(t, reg.PutBinding(ctx, Binding{Topic: "t", Queue: "q1", Key: "42"}))

	got, err := reg.Bindings(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []Binding{
		{Topic: "t", Queue: "q1", Key: "42"},
		{Topic: "t", Queue: "q2", Key: "42"},
	}, got)

	empty, err := reg.Bindings(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisRegistry_DeleteBinding(t *testing.T) {
	ctx := context.Background()
	reg, mr := newRedisRegistry(t)

	require.NoError(t, reg.PutBinding(ctx, Binding{Topic: "t", Queue: "q1", Key: "42"}))
	require.NoError(t, reg.PutBinding(ctx, Binding{Topic: "t", Queue: "q1", Key: "7"}))

	require.NoError(t, reg.DeleteBinding(ctx, Binding{Topic: "t", Queue: "q1", Key: "42"}))
	require.NoError(t, reg.DeleteBinding(ctx, Binding{Topic: "t", Queue: "q1", Key: "42"}))

	got, err := reg.Bindings(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []Binding{{Topic: "t", Queue: "q1", Key: "7"}}, got)
	fields, err := mr.HKeys("test:bindings:t")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1\x1f7"}, fields)
}

func TestRedisRegistry_SharedAcrossExchanges(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRedisRegistry(t)

	b1, b2 := newRecordingBroker(), newRecordingBroker()
	ex1 := NewExchange(b1, reg)
	ex2 := NewExchange(b2, reg)

	require.NoError(t, ex1.DeclareTopic(ctx, "requests", TopicPartitioned))
	require.NoError(t, ex1.Bind(ctx, "requests", "req-a", "42"))
	require.NoError(t, ex2.DeclareTopic(ctx, "requests", TopicPartitioned))
	require.NoError(t, ex2.Bind(ctx, "requests", "req-b", "42"))

	for _, key := range []string{"alpha", "bravo", "charlie", "delta"} {
		b1.published = map[string][]OutgoingMessage{}
		b2.published = map[string][]OutgoingMessage{}
		require.NoError(t, ex1.Publish(ctx, "requests", key, OutgoingMessage{}))
		require.NoError(t, ex2.Publish(ctx, "requests", key, OutgoingMessage{}))

		var q1, q2 string
		for q := range b1.published {
			q1 = q
		}
		for q := range b2.published {
			q2 = q
		}
		assert.Equal(t, q1, q2, "both instances route %s to the same queue", key)
	}
}

func TestRedisRegistry_Unavailable(t *testing.T) {
	ctx := context.Background()
	reg, mr := newRedisRegistry(t)
	mr.Close()

	_, err := reg.PutTopic(ctx, "t", TopicDirect)
	assert.Error(t, err)
	assert.Error(t, reg.PutBinding(ctx, Binding{Topic: "t", Queue: "q", Key: "k"}))
	_, err = reg.Bindings(ctx, "t")
	assert.Error(t, err)
}
