package notification

import (
	"context"

	"github.com/pedrosfaria2/email-verifier/internal/notification/inbound"
	"github.com/pedrosfaria2/email-verifier/internal/notification/outbound/email"
	"github.com/pedrosfaria2/email-verifier/internal/notification/usecase"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/clock"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/config"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/goroutine"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/idempotency"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/mail"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/messaging"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/uid"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/validator"
	"github.com/pedrosfaria2/email-verifier/internal/shared/event"
)

// Dependency carries what the notification module needs. Idempotency may be
// nil when no Redis is configured.
type Dependency struct {
	Ctx         context.Context            `validate:"required"`
	Exchange    *messaging.Exchange        `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UUID        uid.StringID               `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
	Mail        mail.Mail                  `validate:"required"`
	Idempotency idempotency.Idempotency
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	// the registration module declares the same binding; both are idempotent
	// and either module may start alone.
	if err := dep.Exchange.DeclareTopic(dep.Ctx, event.RegistrationNotificationTopic, messaging.TopicDirect); err != nil {
		return err
	}
	if err := dep.Exchange.DeclareQueue(dep.Ctx, event.RegistrationNotificationQueue); err != nil {
		return err
	}
	if err := dep.Exchange.Bind(dep.Ctx, event.RegistrationNotificationTopic, event.RegistrationNotificationQueue, event.RegistrationNotificationRoutingKey); err != nil {
		return err
	}

	repoMail := email.New(dep.Mail, dep.Instrument)

	uc := usecase.NewNotification(usecase.Dependency{
		Config:      dep.Config,
		Clock:       dep.Clock,
		Validator:   dep.Validator,
		RepoMail:    repoMail,
		Idempotency: dep.Idempotency,
		Instrument:  dep.Instrument,
	})

	inbound.RegisterMQConsumer(dep.Ctx, inbound.ConsumerConfig{
		Concurrency:    dep.Config.GetInt("notification.concurrency"),
		HandlerTimeout: dep.Config.GetDuration("messaging.handler_timeout"),
		MaxDeliveries:  dep.Config.GetInt("messaging.dead_letter.max_deliveries"),
	}, dep.Goroutine, dep.Exchange, dep.UUID, uc, dep.Instrument)

	return nil
}
