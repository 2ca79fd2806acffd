package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/pedrosfaria2/email-verifier/internal/notification/entity"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/idempotency"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type SendRegistrationCodeInput struct {
	Email            string `validate:"required,email"`
	ConfirmationCode string `validate:"required,confirmation_code"`
}

// SendRegistrationCode mails a confirmation code. A given (email, code) pair
// is mailed at most once while its idempotency state lives, so redelivered
// notifications do not spam the recipient. A failed send releases the key
// and is returned so the broker redelivers.
func (s *Usecase) SendRegistrationCode(ctx context.Context, in SendRegistrationCodeInput) error {
	ctx, span := s.startSpan(ctx, "SendRegistrationCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "invalid registration code notification", "email", in.Email, "error", err)
		return goerror.NewInvalidInput(err)
	}

	data := s.baseEmailTemplateData()
	data["email"] = in.Email
	data["confirmation_code"] = in.ConfirmationCode

	msg, err := s.render(entity.TriggerKeyRegistrationCode, data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render registration code email", "email", in.Email, "error", err)
		return goerror.NewServer(err)
	}
	msg.To = []string{in.Email}

	send := func(ctx context.Context) error {
		return s.repoMail.Send(ctx, msg)
	}

	if s.idempotency == nil {
		err = send(ctx)
	} else {
		err = s.idempotency.Exec(ctx, dedupKey(in.Email, in.ConfirmationCode), send,
			idempotency.WithReleaseOnFailure(),
			idempotency.WithStateTTL(s.cfg.GetDuration("notification.dedup_ttl")),
			idempotency.WithLockDuration(s.cfg.GetDuration("notification.lock_duration")),
		)
	}

	switch {
	case err == nil:
		slog.InfoContext(ctx, "registration code sent", "email", in.Email)
		s.count(ctx, entity.DeliveryResultSent)
		return nil
	case errors.Is(err, idempotency.ErrAlreadyCompleted):
		slog.InfoContext(ctx, "registration code already sent", "email", in.Email)
		s.count(ctx, entity.DeliveryResultDuplicate)
		return nil
	case errors.Is(err, idempotency.ErrAlreadyInProgress):
		slog.WarnContext(ctx, "registration code delivery in progress elsewhere", "email", in.Email)
		return goerror.NewUnavailable(err)
	default:
		slog.ErrorContext(ctx, "failed to send registration code", "email", in.Email, "error", err)
		s.count(ctx, entity.DeliveryResultFailed)
		return goerror.NewUnavailable(err)
	}
}

// dedupKey names one (email, code) delivery. Only a digest of the pair is
// stored, never the code itself.
func dedupKey(email, code string) string {
	sum := sha256.Sum256([]byte(email + "\x00" + code))
	return "registration-notification:" + hex.EncodeToString(sum[:])
}

func (s *Usecase) count(ctx context.Context, r entity.DeliveryResult) {
	if s.deliveries == nil {
		return
	}
	s.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", entity.TriggerKeyRegistrationCode.String()),
		attribute.String("result", r.String()),
	))
}
