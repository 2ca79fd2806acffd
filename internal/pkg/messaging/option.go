package messaging

import "time"

type consumeOptions struct {
	concurrency int
	maxInFlight int
	autoAck     bool

	// group names the competing-consumer set: the Kafka consumer group, NSQ
	// channel, NATS queue group or Pub/Sub subscription.
	group string

	handlerTimeout time.Duration
	maxDeliveries  int
	deadLetter     string
}

type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	var co consumeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	return co
}

// WithConcurrency sets how many handlers run in parallel. Defaults to 1.
func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

// WithMaxInFlight caps unsettled deliveries on drivers with flow control.
func WithMaxInFlight(n int) ConsumeOption {
	return func(o *consumeOptions) { o.maxInFlight = n }
}

func WithAutoAck(autoAck bool) ConsumeOption {
	return func(o *consumeOptions) { o.autoAck = autoAck }
}

// WithGroup joins the consumer to a named set that shares the queue.
func WithGroup(group string) ConsumeOption {
	return func(o *consumeOptions) { o.group = group }
}

// WithHandlerTimeout cancels the handler's context after d. The worker waits
// for the handler to return, and a failure after the deadline is reported as
// ErrHandlerTimeout.
func WithHandlerTimeout(d time.Duration) ConsumeOption {
	return func(o *consumeOptions) { o.handlerTimeout = d }
}

// WithMaxDeliveries dead-letters a message whose handler still fails on the
// n-th delivery. Requires auto-ack.
func WithMaxDeliveries(n int) ConsumeOption {
	return func(o *consumeOptions) { o.maxDeliveries = n }
}

// WithDeadLetter overrides the "<queue>.dead-letter" destination.
func WithDeadLetter(queue string) ConsumeOption {
	return func(o *consumeOptions) { o.deadLetter = queue }
}

func (o consumeOptions) workers() int {
	if o.concurrency <= 0 {
		return 1
	}
	return o.concurrency
}
