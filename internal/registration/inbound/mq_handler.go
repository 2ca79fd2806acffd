package inbound

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/messaging"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/uid"
	"github.com/pedrosfaria2/email-verifier/internal/registration/usecase"
	"github.com/pedrosfaria2/email-verifier/internal/shared/event"
)

type MQHandler struct {
	uc   ucConsumer
	uuid uid.StringID
	ins  instrument.Instrumentation
}

// RegistrationRequest handles one submission from the request queue. The
// body is the bare email. Malformed submissions are acknowledged and
// dropped, transient failures are returned so the broker redelivers.
func (h *MQHandler) RegistrationRequest(ctx context.Context, msg messaging.Message) error {
	ctx = event.IncomingContext(ctx, msg.Headers(), h.uuid)

	ctx, span := h.ins.Tracer("registration.inbound.mq").Start(ctx, "RegistrationRequest")
	defer span.End()

	email := strings.TrimSpace(string(msg.Body()))
	slog.InfoContext(ctx, "consume: registration request", "email", email)

	err := h.uc.GenerateCodeAndPublish(ctx, usecase.GenerateCodeInput{Email: email})
	if err == nil {
		return nil
	}

	if !goerror.IsRetryable(err) {
		slog.WarnContext(ctx, "dropping invalid registration request", "email", email, "error", err)
		return nil
	}

	slog.ErrorContext(ctx, "failed to process registration request", "email", email, "error", err)
	return err
}
