package usecase

import (
	"context"
	"log/slog"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
)

type RequestRegistrationInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// RequestRegistration accepts a submission and hands it to the partitioned
// request topic. The code is generated later by whichever worker owns the
// email's partition.
func (s *Usecase) RequestRegistration(ctx context.Context, in RequestRegistrationInput) error {
	ctx, span := s.startSpan(ctx, "RequestRegistration")
	defer span.End()

	in.Email = normalizeEmail(in.Email)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	if err := s.repoMessaging.PublishRegistrationRequest(ctx, in.Email); err != nil {
		slog.ErrorContext(ctx, "failed to publish registration request", "email", in.Email, "error", err)
		return goerror.NewUnavailable(err)
	}

	return nil
}
