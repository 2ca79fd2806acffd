package inbound

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/goroutine"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/messaging"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/uid"
	"github.com/pedrosfaria2/email-verifier/internal/shared/event"
)

type subscriber interface {
	Subscribe(ctx context.Context, queue string, handler messaging.Handler, opts ...messaging.ConsumeOption) error
}

// ConsumerConfig tunes the notification queue consumer.
type ConsumerConfig struct {
	Concurrency    int
	HandlerTimeout time.Duration
	MaxDeliveries  int
}

func RegisterMQConsumer(
	ctx context.Context,
	cfg ConsumerConfig,
	routine *goroutine.Manager,
	sub subscriber,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	concurrency := max(cfg.Concurrency, 1)

	routine.Go(ctx, func(pCtx context.Context) error {
		slog.InfoContext(ctx, "Running job for handling consumer", "queue", event.RegistrationNotificationQueue, "concurrency", concurrency)
		err := sub.Subscribe(pCtx,
			event.RegistrationNotificationQueue,
			mqHandler.RegistrationNotification,
			messaging.WithAutoAck(true),
			messaging.WithConcurrency(concurrency),
			messaging.WithMaxInFlight(concurrency),
			messaging.WithHandlerTimeout(cfg.HandlerTimeout),
			messaging.WithMaxDeliveries(cfg.MaxDeliveries),
		)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}
