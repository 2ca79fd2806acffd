package usecase

import (
	"context"
	"log/slog"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
	"github.com/pedrosfaria2/email-verifier/internal/registration/entity"
)

type GenerateCodeInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// GenerateCodeAndPublish issues a fresh code for the email, replacing any
// pending one, and publishes it for the mailer. The pending request is
// persisted before anything is published.
func (s *Usecase) GenerateCodeAndPublish(ctx context.Context, in GenerateCodeInput) error {
	ctx, span := s.startSpan(ctx, "GenerateCodeAndPublish")
	defer span.End()

	in.Email = normalizeEmail(in.Email)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	code := s.code.Generate()
	codeHash, err := s.codeHash(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash confirmation code", "error", err)
		return goerror.NewServer(err)
	}

	if err := s.repoDB.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{
		Email:     in.Email,
		CodeHash:  codeHash,
		CreatedAt: s.clock.Now(),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to repo upsert registration request", "email", in.Email, "error", err)
		return goerror.NewServer(err)
	}

	if err := s.repoMessaging.PublishRegistrationNotification(ctx, RegistrationNotificationEvent{
		Email:            in.Email,
		ConfirmationCode: code,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish registration notification", "email", in.Email, "error", err)
		return goerror.NewUnavailable(err)
	}

	slog.InfoContext(ctx, "registration code issued", "email", in.Email)
	return nil
}
