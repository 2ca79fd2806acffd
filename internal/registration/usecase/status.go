package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
)

type RegistrationStatusInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type RegistrationStatusOutput struct {
	Email      string
	Registered bool
}

// RegistrationStatus reports whether an email completed confirmation. It
// never reveals whether a pending request exists.
func (s *Usecase) RegistrationStatus(ctx context.Context, in RegistrationStatusInput) (*RegistrationStatusOutput, error) {
	ctx, span := s.startSpan(ctx, "RegistrationStatus")
	defer span.End()

	in.Email = normalizeEmail(in.Email)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	_, err := s.repoDB.GetRegistration(ctx, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		return &RegistrationStatusOutput{Email: in.Email}, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get registration", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &RegistrationStatusOutput{Email: in.Email, Registered: true}, nil
}
