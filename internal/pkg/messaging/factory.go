package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Driver names accepted by messaging.driver.
const (
	DriverNSQ          = "nsq"
	DriverNATS         = "nats"
	DriverKafka        = "kafka"
	DriverGooglePubSub = "google-pubsub"
	DriverMemory       = "memory"
)

var ErrUnknownDriver = errors.New("messaging: unknown driver")

// FactoryOptions holds the settings of every driver; only the selected
// driver's section is read.
type FactoryOptions struct {
	NSQ    NSQConfig
	Kafka  KafkaConfig
	NATS   NATSConfig
	PubSub PubSubConfig
	Memory MemoryConfig
}

// NewFromDriver opens the broker named by driver. Driver names are matched
// case-insensitively.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Messaging, error) {
	var (
		m   Messaging
		err error
	)

	switch name := strings.ToLower(strings.TrimSpace(driver)); name {
	case DriverMemory:
		return NewMemory(opts.Memory), nil
	case DriverNSQ:
		m, err = NewNSQ(opts.NSQ)
	case DriverNATS:
		m, err = NewNATS(opts.NATS)
	case DriverKafka:
		m, err = NewKafka(opts.Kafka)
	case DriverGooglePubSub:
		m, err = NewPubSub(ctx, opts.PubSub)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("messaging: open %s: %w", driver, err)
	}
	return m, nil
}
