package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pedrosfaria2/email-verifier/internal/notification/usecase"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/messaging"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/uid"
	"github.com/pedrosfaria2/email-verifier/internal/shared/event"
)

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) RegistrationNotification(ctx context.Context, msg messaging.Message) error {
	ctx = event.IncomingContext(ctx, msg.Headers(), h.uuid)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "RegistrationNotification")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: registration notification", "msg_body", string(body))

	var payload event.RegistrationNotificationMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of registration notification", "msg_body", string(body), "error", err)
		return nil
	}

	err := h.uc.SendRegistrationCode(ctx, usecase.SendRegistrationCodeInput{
		Email:            payload.Email,
		ConfirmationCode: payload.ConfirmationCode,
	})
	if err != nil && goerror.IsRetryable(err) {
		slog.ErrorContext(ctx, "failed to send registration notification", "msg_body", string(body), "error", err)
		return err
	}

	return nil
}
