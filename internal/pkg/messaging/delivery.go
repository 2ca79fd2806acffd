package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

const (
	// HeaderDeliveryAttempt carries the delivery count for brokers that have
	// no native redelivery counter.
	HeaderDeliveryAttempt = "x-delivery-attempt"
	// HeaderDeadLetterSource names the queue a dead-lettered message came from.
	HeaderDeadLetterSource = "x-dead-letter-source"
	// HeaderDeadLetterReason carries the last handler error.
	HeaderDeadLetterReason = "x-dead-letter-reason"

	deadLetterSuffix = ".dead-letter"
)

// delivery is the driver-side view of a received message.
type delivery interface {
	Message
	Nackable
	hasResponded() bool
}

// dispatcher runs a Handler for each delivery of one Consume call and
// settles the message according to the consume options.
type dispatcher struct {
	kind      string
	source    string
	handler   Handler
	opts      consumeOptions
	publisher Publisher
}

func newDispatcher(kind, source string, handler Handler, opts consumeOptions, publisher Publisher) dispatcher {
	return dispatcher{
		kind:      kind,
		source:    source,
		handler:   handler,
		opts:      opts,
		publisher: publisher,
	}
}

// dispatch invokes the handler and, with auto-ack, acks on success, nacks on
// failure, or dead-letters when the delivery budget is spent. The returned
// error is a settlement failure, never the handler error.
func (d dispatcher) dispatch(ctx context.Context, msg delivery) error {
	herr := d.invoke(ctx, msg)
	if msg.hasResponded() || !d.opts.autoAck {
		return nil
	}

	if herr == nil {
		return msg.Ack(ctx)
	}

	attempts := deliveryAttempts(msg)
	if d.opts.maxDeliveries > 0 && attempts >= d.opts.maxDeliveries {
		if err := d.deadLetter(ctx, msg, herr); err != nil {
			slog.ErrorContext(ctx, "failed to dead-letter message", "kind", d.kind, "source", d.source, "error", err)
			return msg.Nack(ctx)
		}
		return msg.Ack(ctx)
	}

	slog.WarnContext(ctx, "message handler failed, requesting redelivery",
		"kind", d.kind, "source", d.source, "attempt", attempts, "error", herr)
	return msg.Nack(ctx)
}

// invoke returns only after the handler has, so a worker never runs two
// handlers at once. The handler timeout cancels hctx; a handler that ignores
// it holds its worker until it returns.
func (d dispatcher) invoke(ctx context.Context, msg Message) error {
	if d.opts.handlerTimeout <= 0 {
		return d.guard(ctx, msg)
	}

	hctx, cancel := context.WithTimeout(ctx, d.opts.handlerTimeout)
	defer cancel()

	err := d.guard(hctx, msg)
	if err != nil && ctx.Err() == nil && errors.Is(hctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrHandlerTimeout, d.opts.handlerTimeout, err)
	}
	return err
}

func (d dispatcher) deadLetter(ctx context.Context, msg Message, cause error) error {
	if d.publisher == nil {
		return ErrUnsupported
	}

	dest := d.opts.deadLetter
	if dest == "" {
		dest = d.source + deadLetterSuffix
	}

	headers := append([]Header{}, msg.Headers()...)
	headers = append(headers,
		Header{Key: HeaderDeadLetterSource, Value: []byte(d.source)},
		Header{Key: HeaderDeadLetterReason, Value: []byte(cause.Error())},
	)

	if _, err := d.publisher.Publish(ctx, dest, OutgoingMessage{
		Body:    msg.Body(),
		Key:     msg.Key(),
		Headers: headers,
	}); err != nil {
		return err
	}

	slog.WarnContext(ctx, "message moved to dead-letter",
		"kind", d.kind, "source", d.source, "destination", dest, "attempt", deliveryAttempts(msg), "error", cause)
	return nil
}

func deliveryAttempts(msg Message) int {
	if dc, ok := msg.(DeliveryCounter); ok {
		if n := dc.Attempts(); n > 0 {
			return n
		}
	}
	return 1
}

// attemptFromHeaders reads HeaderDeliveryAttempt, defaulting to the first delivery.
func attemptFromHeaders(headers []Header) int {
	for i := len(headers) - 1; i >= 0; i-- {
		if headers[i].Key != HeaderDeliveryAttempt {
			continue
		}
		if n, err := strconv.Atoi(string(headers[i].Value)); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// withAttempt replaces HeaderDeliveryAttempt in headers.
func withAttempt(headers []Header, attempt int) []Header {
	out := make([]Header, 0, len(headers)+1)
	for _, h := range headers {
		if h.Key == HeaderDeliveryAttempt {
			continue
		}
		out = append(out, h)
	}
	return append(out, Header{Key: HeaderDeliveryAttempt, Value: []byte(strconv.Itoa(attempt))})
}
