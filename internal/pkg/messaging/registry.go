package messaging

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrTopicNotFound is returned when a topic was never declared.
var ErrTopicNotFound = errors.New("messaging: topic not found")

// TopicKind selects how a topic routes messages to its bound queues.
type TopicKind string

const (
	// TopicDirect delivers to every queue bound with exactly the routing key.
	TopicDirect TopicKind = "direct"
	// TopicPartitioned delivers to one queue chosen by consistent hashing of
	// the routing key. Binding keys are integer weights.
	TopicPartitioned TopicKind = "partitioned"
)

// Valid reports whether k is a known topic kind.
func (k TopicKind) Valid() bool {
	return k == TopicDirect || k == TopicPartitioned
}

// Binding associates a queue with a topic under a key.
type Binding struct {
	Topic string
	Queue string
	Key   string
}

// BindingRegistry stores the declared topology. It is shared by every
// process that publishes to the same topics so they all route alike.
type BindingRegistry interface {
	// PutTopic records a topic. It returns the kind already stored when the
	// topic exists, which may differ from kind.
	PutTopic(ctx context.Context, name string, kind TopicKind) (TopicKind, error)
	// Topic returns the kind of a declared topic or ErrTopicNotFound.
	Topic(ctx context.Context, name string) (TopicKind, error)
	// PutBinding records a binding. Repeating it is a no-op.
	PutBinding(ctx context.Context, b Binding) error
	// DeleteBinding removes a binding. Removing a missing one is a no-op.
	DeleteBinding(ctx context.Context, b Binding) error
	// Bindings lists the bindings of a topic.
	Bindings(ctx context.Context, topic string) ([]Binding, error)
}

// MemoryRegistry is a process-local BindingRegistry.
type MemoryRegistry struct {
	mu       sync.RWMutex
	topics   map[string]TopicKind
	bindings map[string][]Binding
}

// NewMemoryRegistry constructs an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		topics:   map[string]TopicKind{},
		bindings: map[string][]Binding{},
	}
}

func (r *MemoryRegistry) PutTopic(_ context.Context, name string, kind TopicKind) (TopicKind, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.topics[name]; ok {
		return existing, nil
	}
	r.topics[name] = kind
	return kind, nil
}

func (r *MemoryRegistry) Topic(_ context.Context, name string) (TopicKind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.topics[name]
	if !ok {
		return "", ErrTopicNotFound
	}
	return kind, nil
}

func (r *MemoryRegistry) PutBinding(_ context.Context, b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.bindings[b.Topic], b) {
		return nil
	}
	r.bindings[b.Topic] = append(r.bindings[b.Topic], b)
	return nil
}

func (r *MemoryRegistry) DeleteBinding(_ context.Context, b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[b.Topic] = slices.DeleteFunc(r.bindings[b.Topic], func(x Binding) bool { return x == b })
	return nil
}

func (r *MemoryRegistry) Bindings(_ context.Context, topic string) ([]Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.bindings[topic]), nil
}
