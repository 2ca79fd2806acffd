package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrUnsupported is returned for features a driver cannot provide, such
	// as delayed publish on Kafka.
	ErrUnsupported    = errors.New("messaging: unsupported operation")
	ErrHandlerTimeout = errors.New("messaging: handler timed out")
)

// Messaging is a driver: it moves bytes between named queues. Topics and
// bindings live one level up, in Exchange.
type Messaging interface {
	io.Closer
	Publisher
	Consumer
}

type Publisher interface {
	Publish(ctx context.Context, queue string, msg OutgoingMessage) (PublishResult, error)
}

// Consumer blocks in Consume until ctx is done or the driver fails.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes one delivery.
//
// With WithAutoAck(true) a nil error acks the message and a non-nil error
// nacks it for redelivery, or dead-letters it once WithMaxDeliveries is
// reached. Without auto-ack the handler settles the message itself.
type Handler func(ctx context.Context, msg Message) error

type OutgoingMessage struct {
	Body []byte
	// Key is the routing key the message was published with. Kafka also
	// partitions by it.
	Key []byte
	// Headers may repeat a key. Drivers without binary headers carry the
	// value as a string.
	Headers []Header
	// Delay defers delivery on drivers that support it.
	Delay time.Duration
}

type Header struct {
	Key   string
	Value []byte
}

// PublishResult holds what the driver learned about an accepted message.
// Fields a driver cannot fill stay zero.
type PublishResult struct {
	MessageID string
	Queue     string
	Partition int
	Offset    int64
	Timestamp time.Time
}

// Message is a received delivery.
type Message interface {
	Body() []byte
	Key() []byte
	Headers() []Header
	ID() string
	Timestamp() time.Time
	Ack(ctx context.Context) error
}

// Nackable asks the broker to deliver the message again.
type Nackable interface {
	Nack(ctx context.Context) error
}

// DeliveryCounter reports the delivery attempt, starting at 1.
type DeliveryCounter interface {
	Attempts() int
}

// QueueDeclarer is implemented by drivers whose queues must exist before
// the first publish (Kafka topics, Pub/Sub topic and subscription pairs).
type QueueDeclarer interface {
	DeclareQueue(ctx context.Context, name string) error
}
