package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrPubSubProjectIDRequired    = errors.New("messaging: pubsub project id is required")
	ErrPubSubTopicRequired        = errors.New("messaging: pubsub topic is required")
	ErrPubSubSubscriptionRequired = errors.New("messaging: pubsub subscription is required")
	ErrPubSubHandlerRequired      = errors.New("messaging: pubsub handler is required")
)

// pubSubKeyAttribute carries OutgoingMessage.Key as a message attribute.
const pubSubKeyAttribute = "x-routing-key"

// PubSubConfig configures the Google Pub/Sub driver. A queue maps to a topic
// of the same name and each consumer group to a subscription on it.
type PubSubConfig struct {
	ProjectID string
	// Client is used as is when set; ClientOptions are ignored then.
	Client        *pubsub.Client
	ClientOptions []option.ClientOption
	// AckDeadlineSeconds applies to subscriptions created by DeclareQueue.
	// Defaults to 60.
	AckDeadlineSeconds int32
}

type PubSub struct {
	client      *pubsub.Client
	project     string
	ackDeadline int32

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
	closed     bool
}

func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	if cfg.ProjectID == "" {
		return nil, ErrPubSubProjectIDRequired
	}

	client := cfg.Client
	if client == nil {
		c, err := pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions...)
		if err != nil {
			return nil, fmt.Errorf("messaging: pubsub new client: %w", err)
		}
		client = c
	}

	ackDeadline := cfg.AckDeadlineSeconds
	if ackDeadline <= 0 {
		ackDeadline = 60
	}

	return &PubSub{
		client:      client,
		project:     cfg.ProjectID,
		ackDeadline: ackDeadline,
		publishers:  map[string]*pubsub.Publisher{},
	}, nil
}

// Close flushes pending publishes before closing the client.
func (p *PubSub) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pubs := slices.Collect(maps.Values(p.publishers))
	p.publishers = nil
	p.mu.Unlock()

	for _, pub := range pubs {
		pub.Stop()
	}
	return p.client.Close()
}

// Publish waits for the server-assigned id, so a nil error means the message
// is stored.
func (p *PubSub) Publish(ctx context.Context, topic string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if topic == "" {
		return PublishResult{}, ErrPubSubTopicRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}
	pub, err := p.publisher(topic)
	if err != nil {
		return PublishResult{}, err
	}

	id, err := pub.Publish(ctx, &pubsub.Message{
		Data:       msg.Body,
		Attributes: pubSubAttributes(msg),
	}).Get(ctx)
	if err != nil {
		return PublishResult{}, fmt.Errorf("messaging: pubsub publish: %w", err)
	}
	return PublishResult{MessageID: id, Queue: topic}, nil
}

// Consume receives from the subscription named by WithGroup, or by topic
// itself when no group is given.
func (p *PubSub) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrPubSubSubscriptionRequired
	}
	if handler == nil {
		return ErrPubSubHandlerRequired
	}
	if p.isClosed() {
		return io.ErrClosedPipe
	}

	co := newConsumeOptions(opts...)
	subscription := topic
	if co.group != "" {
		subscription = co.group
	}

	sub := p.client.Subscriber(subscription)
	sub.ReceiveSettings.NumGoroutines = co.workers()
	if co.maxInFlight > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = co.maxInFlight
	}

	d := newDispatcher("pubsub", topic, handler, co, p)
	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if err := d.dispatch(ctx, newPubSubMessage(m)); err != nil {
			slog.WarnContext(ctx, "failed to settle pubsub message", "subscription", subscription, "error", err)
		}
	})
}

// DeclareQueue creates the topic, its same-named subscription and the
// dead-letter pair. Resources that already exist are left untouched.
func (p *PubSub) DeclareQueue(ctx context.Context, name string) error {
	if name == "" {
		return ErrPubSubTopicRequired
	}
	if p.isClosed() {
		return io.ErrClosedPipe
	}

	for _, queue := range []string{name, name + deadLetterSuffix} {
		topic := fmt.Sprintf("projects/%s/topics/%s", p.project, queue)
		_, err := p.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topic})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("messaging: pubsub create topic %s: %w", queue, err)
		}

		_, err = p.client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
			Name:               fmt.Sprintf("projects/%s/subscriptions/%s", p.project, queue),
			Topic:              topic,
			AckDeadlineSeconds: p.ackDeadline,
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("messaging: pubsub create subscription %s: %w", queue, err)
		}
	}
	return nil
}

func (p *PubSub) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *PubSub) publisher(topic string) (*pubsub.Publisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, io.ErrClosedPipe
	}
	pub, ok := p.publishers[topic]
	if !ok {
		pub = p.client.Publisher(topic)
		p.publishers[topic] = pub
	}
	return pub, nil
}

// pubSubAttributes folds headers and the key into string attributes, the
// only metadata Pub/Sub carries. A repeated header keeps its last value.
func pubSubAttributes(msg OutgoingMessage) map[string]string {
	if len(msg.Headers) == 0 && len(msg.Key) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(msg.Headers)+1)
	for _, h := range msg.Headers {
		if h.Key != "" {
			attrs[h.Key] = string(h.Value)
		}
	}
	if len(msg.Key) > 0 {
		attrs[pubSubKeyAttribute] = string(msg.Key)
	}
	return attrs
}
