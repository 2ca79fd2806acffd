package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnroutable is returned when a publish matches no bound queue.
	ErrUnroutable = errors.New("messaging: no queue bound for routing key")
	// ErrTopicKindMismatch is returned when a topic is redeclared with another kind.
	ErrTopicKindMismatch = errors.New("messaging: topic already declared with a different kind")
	// ErrInvalidTopicKind is returned for an unknown TopicKind.
	ErrInvalidTopicKind = errors.New("messaging: invalid topic kind")
	// ErrInvalidWeight is returned when a partitioned binding key is not a positive integer.
	ErrInvalidWeight = errors.New("messaging: partitioned binding key must be a positive integer weight")
	// ErrNameRequired is returned when a topic or queue name is empty.
	ErrNameRequired = errors.New("messaging: topic and queue names are required")
)

// HeaderTopic names the topic a message was published to.
const HeaderTopic = "x-topic"

// ExchangeOption configures an Exchange.
type ExchangeOption func(*Exchange)

// WithRouteCacheTTL caches the routing table of each topic for ttl. Zero
// reads the registry on every publish.
func WithRouteCacheTTL(ttl time.Duration) ExchangeOption {
	return func(e *Exchange) { e.cacheTTL = ttl }
}

// WithMeter records publish counters on meter.
func WithMeter(meter metric.Meter) ExchangeOption {
	return func(e *Exchange) {
		if meter != nil {
			e.meter = meter
		}
	}
}

// Exchange adds topics and bindings on top of a queue-only broker.
type Exchange struct {
	broker   Messaging
	registry BindingRegistry
	cacheTTL time.Duration
	now      func() time.Time

	meter     metric.Meter
	published metric.Int64Counter

	mu     sync.RWMutex
	routes map[string]*route
	group  singleflight.Group
}

// route is the resolved routing table of one topic.
type route struct {
	kind     TopicKind
	direct   map[string][]string
	ring     *Ring
	loadedAt time.Time
}

// NewExchange wraps broker with topic routing backed by registry.
func NewExchange(broker Messaging, registry BindingRegistry, opts ...ExchangeOption) *Exchange {
	e := &Exchange{
		broker:   broker,
		registry: registry,
		now:      time.Now,
		meter:    noop.NewMeterProvider().Meter("messaging"),
		routes:   map[string]*route{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	counter, err := e.meter.Int64Counter("messaging.exchange.published",
		metric.WithDescription("Messages routed by the exchange, per topic and queue"))
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter("messaging").Int64Counter("messaging.exchange.published")
	}
	e.published = counter

	return e
}

// Broker returns the underlying queue broker.
func (e *Exchange) Broker() Messaging {
	return e.broker
}

// Close closes the underlying broker.
func (e *Exchange) Close() error {
	return e.broker.Close()
}

// DeclareTopic records a topic. Declaring the same name and kind again is a no-op.
func (e *Exchange) DeclareTopic(ctx context.Context, name string, kind TopicKind) error {
	if name == "" {
		return ErrNameRequired
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTopicKind, kind)
	}

	stored, err := e.registry.PutTopic(ctx, name, kind)
	if err != nil {
		return err
	}
	if stored != kind {
		return fmt.Errorf("%w: %s is %s", ErrTopicKindMismatch, name, stored)
	}
	return nil
}

// DeclareQueue makes sure the queue exists on brokers that support it.
func (e *Exchange) DeclareQueue(ctx context.Context, name string) error {
	if name == "" {
		return ErrNameRequired
	}
	if qd, ok := e.broker.(QueueDeclarer); ok {
		return qd.DeclareQueue(ctx, name)
	}
	return nil
}

// Bind attaches queue to topic under key. For partitioned topics key is the
// queue's weight on the hash ring, and binding again replaces that weight.
func (e *Exchange) Bind(ctx context.Context, topic, queue, key string) error {
	if topic == "" || queue == "" {
		return ErrNameRequired
	}

	kind, err := e.registry.Topic(ctx, topic)
	if err != nil {
		return err
	}
	if kind == TopicPartitioned {
		if _, err := parseWeight(key); err != nil {
			return err
		}
	}

	defer e.invalidate(topic)
	if err := e.registry.PutBinding(ctx, Binding{Topic: topic, Queue: queue, Key: key}); err != nil {
		return err
	}
	if kind == TopicPartitioned {
		return e.dropBindings(ctx, topic, queue, func(b Binding) bool { return b.Key != key })
	}
	return nil
}

// Unbind detaches queue from topic. On a direct topic only the binding under
// key goes; on a partitioned topic the queue leaves the ring whatever its
// weight. Unbinding what is not bound is a no-op.
func (e *Exchange) Unbind(ctx context.Context, topic, queue, key string) error {
	if topic == "" || queue == "" {
		return ErrNameRequired
	}

	kind, err := e.registry.Topic(ctx, topic)
	if err != nil {
		return err
	}

	defer e.invalidate(topic)
	if kind == TopicPartitioned {
		return e.dropBindings(ctx, topic, queue, func(Binding) bool { return true })
	}
	return e.registry.DeleteBinding(ctx, Binding{Topic: topic, Queue: queue, Key: key})
}

func (e *Exchange) dropBindings(ctx context.Context, topic, queue string, match func(Binding) bool) error {
	bindings, err := e.registry.Bindings(ctx, topic)
	if err != nil {
		return err
	}
	for _, b := range bindings {
		if b.Queue != queue || !match(b) {
			continue
		}
		if err := e.registry.DeleteBinding(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// Publish routes msg to the queues of topic selected by routingKey. The
// routing key is also set as the message key.
func (e *Exchange) Publish(ctx context.Context, topic, routingKey string, msg OutgoingMessage) error {
	rt, err := e.route(ctx, topic)
	if err != nil {
		return err
	}

	queues := rt.resolve(routingKey)
	if len(queues) == 0 {
		return fmt.Errorf("%w: topic=%s key=%s", ErrUnroutable, topic, routingKey)
	}

	msg.Key = []byte(routingKey)
	msg.Headers = append(append([]Header(nil), msg.Headers...), Header{Key: HeaderTopic, Value: []byte(topic)})

	for _, queue := range queues {
		if _, err := e.broker.Publish(ctx, queue, msg); err != nil {
			return fmt.Errorf("messaging: publish %s to %s: %w", topic, queue, err)
		}
		e.published.Add(ctx, 1, metric.WithAttributes(
			attribute.String("topic", topic),
			attribute.String("queue", queue),
		))
	}
	return nil
}

// Subscribe consumes queue until ctx is done. The queue name doubles as the
// consumer group unless opts override it.
func (e *Exchange) Subscribe(ctx context.Context, queue string, handler Handler, opts ...ConsumeOption) error {
	if queue == "" {
		return ErrNameRequired
	}
	return e.broker.Consume(ctx, queue, handler, append([]ConsumeOption{WithGroup(queue)}, opts...)...)
}

func (r *route) resolve(routingKey string) []string {
	if r.kind == TopicDirect {
		return r.direct[routingKey]
	}
	if q, ok := r.ring.Locate(routingKey); ok {
		return []string{q}
	}
	return nil
}

func (e *Exchange) route(ctx context.Context, topic string) (*route, error) {
	if rt, ok := e.cached(topic); ok {
		return rt, nil
	}

	v, err, _ := e.group.Do(topic, func() (any, error) {
		rt, err := e.load(ctx, topic)
		if err != nil {
			return nil, err
		}
		if e.cacheTTL > 0 {
			e.mu.Lock()
			e.routes[topic] = rt
			e.mu.Unlock()
		}
		return rt, nil
	})
	if err != nil {
		return nil, err
	}
	rt, ok := v.(*route)
	if !ok {
		return nil, ErrUnroutable
	}
	return rt, nil
}

func (e *Exchange) cached(topic string) (*route, bool) {
	if e.cacheTTL <= 0 {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	rt, ok := e.routes[topic]
	if !ok || e.now().Sub(rt.loadedAt) > e.cacheTTL {
		return nil, false
	}
	return rt, true
}

func (e *Exchange) invalidate(topic string) {
	e.mu.Lock()
	delete(e.routes, topic)
	e.mu.Unlock()
}

func (e *Exchange) load(ctx context.Context, topic string) (*route, error) {
	kind, err := e.registry.Topic(ctx, topic)
	if err != nil {
		return nil, err
	}
	bindings, err := e.registry.Bindings(ctx, topic)
	if err != nil {
		return nil, err
	}

	rt := &route{kind: kind, loadedAt: e.now()}
	if kind == TopicDirect {
		byKey := lo.GroupBy(bindings, func(b Binding) string { return b.Key })
		rt.direct = lo.MapValues(byKey, func(bs []Binding, _ string) []string {
			return lo.Uniq(lo.Map(bs, func(b Binding, _ int) string { return b.Queue }))
		})
		return rt, nil
	}

	weights := map[string]int{}
	for _, b := range bindings {
		w, err := parseWeight(b.Key)
		if err != nil {
			continue
		}
		weights[b.Queue] += w
	}
	rt.ring = NewRing(weights)
	return rt, nil
}

func parseWeight(key string) (int, error) {
	w, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || w <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeight, key)
	}
	return w, nil
}
