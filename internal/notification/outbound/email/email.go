package email

import (
	"context"
	"log/slog"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scope = "notification.outbound.email"

// Mail wraps the configured provider with a client span and a delivery
// counter labelled by outcome.
type Mail struct {
	client mail.Mail
	tracer trace.Tracer
	sent   metric.Int64Counter
}

func New(client mail.Mail, ins instrument.Instrumentation) *Mail {
	sent, err := ins.Meter(scope).Int64Counter("notification.mail.sent",
		metric.WithDescription("Mail deliveries attempted, by outcome"))
	if err != nil {
		slog.Error("failed to create mail counter", "error", err)
	}
	return &Mail{client: client, tracer: ins.Tracer(scope), sent: sent}
}

func (m *Mail) Send(ctx context.Context, msg mail.Message) error {
	ctx, span := m.tracer.Start(ctx, "Send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("mail.recipients", len(msg.Recipients()))),
	)
	defer span.End()

	err := m.client.Send(ctx, msg)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if m.sent != nil {
		m.sent.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}

	return err
}
