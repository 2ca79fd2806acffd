package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const bindingFieldSep = "\x1f"

// RedisRegistry keeps the topology in Redis hashes:
//
//	<prefix>topics            topic -> kind
//	<prefix>bindings:<topic>  queue\x1fkey -> key
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRegistry constructs a registry using prefix for every key.
func NewRedisRegistry(client redis.UniversalClient, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = "messaging:"
	}
	return &RedisRegistry{client: client, prefix: prefix}
}

func (r *RedisRegistry) topicsKey() string {
	return r.prefix + "topics"
}

func (r *RedisRegistry) bindingsKey(topic string) string {
	return r.prefix + "bindings:" + topic
}

func (r *RedisRegistry) PutTopic(ctx context.Context, name string, kind TopicKind) (TopicKind, error) {
	if _, err := r.client.HSetNX(ctx, r.topicsKey(), name, string(kind)).Result(); err != nil {
		return "", fmt.Errorf("messaging: redis put topic: %w", err)
	}
	return r.Topic(ctx, name)
}

func (r *RedisRegistry) Topic(ctx context.Context, name string) (TopicKind, error) {
	val, err := r.client.HGet(ctx, r.topicsKey(), name).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTopicNotFound
	}
	if err != nil {
		return "", fmt.Errorf("messaging: redis get topic: %w", err)
	}
	return TopicKind(val), nil
}

func (r *RedisRegistry) PutBinding(ctx context.Context, b Binding) error {
	if err := r.client.HSet(ctx, r.bindingsKey(b.Topic), bindingField(b), b.Key).Err(); err != nil {
		return fmt.Errorf("messaging: redis put binding: %w", err)
	}
	return nil
}

func (r *RedisRegistry) DeleteBinding(ctx context.Context, b Binding) error {
	if err := r.client.HDel(ctx, r.bindingsKey(b.Topic), bindingField(b)).Err(); err != nil {
		return fmt.Errorf("messaging: redis delete binding: %w", err)
	}
	return nil
}

func bindingField(b Binding) string {
	return b.Queue + bindingFieldSep + b.Key
}

func (r *RedisRegistry) Bindings(ctx context.Context, topic string) ([]Binding, error) {
	fields, err := r.client.HGetAll(ctx, r.bindingsKey(topic)).Result()
	if err != nil {
		return nil, fmt.Errorf("messaging: redis get bindings: %w", err)
	}

	out := make([]Binding, 0, len(fields))
	for field, key := range fields {
		queue, _, ok := strings.Cut(field, bindingFieldSep)
		if !ok {
			continue
		}
		out = append(out, Binding{Topic: topic, Queue: queue, Key: key})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Queue != out[j].Queue {
			return out[i].Queue < out[j].Queue
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}
