package mq

import (
	"context"
	"encoding/json"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/messaging"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/routingkey"
	"github.com/pedrosfaria2/email-verifier/internal/registration/usecase"
	"github.com/pedrosfaria2/email-verifier/internal/shared/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type publisher interface {
	Publish(ctx context.Context, topic, routingKey string, msg messaging.OutgoingMessage) error
}

type Messaging struct {
	client publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

// PublishRegistrationRequest routes the bare email to the partitioned request
// topic, keyed by its hash so every submission for the email lands on the
// same queue.
func (m *Messaging) PublishRegistrationRequest(ctx context.Context, email string) error {
	key := routingkey.Hash(email)

	ctx, span := m.ins.Tracer("registration.outbound.mq").Start(ctx, "PublishRegistrationRequest",
		trace.WithAttributes(attribute.String("messaging.routing_key", key)))
	defer span.End()

	if err := m.client.Publish(ctx, event.RegistrationRequestTopic, key, messaging.OutgoingMessage{
		Body:    []byte(email),
		Headers: event.OutgoingHeaders(ctx),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (m *Messaging) PublishRegistrationNotification(ctx context.Context, msg usecase.RegistrationNotificationEvent) error {
	ctx, span := m.ins.Tracer("registration.outbound.mq").Start(ctx, "PublishRegistrationNotification")
	defer span.End()

	body, err := json.Marshal(event.RegistrationNotificationMessage{
		Email:            msg.Email,
		ConfirmationCode: msg.ConfirmationCode,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := m.client.Publish(ctx, event.RegistrationNotificationTopic, event.RegistrationNotificationRoutingKey, messaging.OutgoingMessage{
		Body:    body,
		Headers: event.OutgoingHeaders(ctx),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
