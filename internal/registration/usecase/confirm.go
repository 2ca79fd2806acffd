package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
	"github.com/pedrosfaria2/email-verifier/internal/registration/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type ConfirmInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"confirmation_code" validate:"required,confirmation_code"`
}

type ConfirmOutput struct {
	Result entity.ConfirmResult
}

// Confirm checks code against the pending request of the email. An unknown
// email and a wrong code both yield ConfirmRejected with no state change.
// Confirming an already confirmed email with its current code succeeds again.
func (s *Usecase) Confirm(ctx context.Context, in ConfirmInput) (*ConfirmOutput, error) {
	ctx, span := s.startSpan(ctx, "Confirm")
	defer span.End()

	in.Email = normalizeEmail(in.Email)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	req, err := s.repoDB.GetRegistrationRequest(ctx, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		return s.confirmResult(ctx, entity.ConfirmRejected), nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get registration request", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !s.hmac.Verify(req.CodeHash, in.Code) {
		return s.confirmResult(ctx, entity.ConfirmRejected), nil
	}

	if req.IsConfirmed() {
		return s.confirmResult(ctx, entity.ConfirmConfirmed), nil
	}

	err = s.repoDB.ConfirmRegistration(ctx, entity.ConfirmRegistration{
		Email:       in.Email,
		CodeHash:    req.CodeHash,
		ConfirmedAt: s.clock.Now(),
	})
	if errors.Is(err, goerror.ErrNotFound) {
		// replaced by a newer submission after the lookup
		return s.confirmResult(ctx, entity.ConfirmRejected), nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo confirm registration", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "registration confirmed", "email", in.Email)
	return s.confirmResult(ctx, entity.ConfirmConfirmed), nil
}

func (s *Usecase) confirmResult(ctx context.Context, r entity.ConfirmResult) *ConfirmOutput {
	if s.confirmations != nil {
		s.confirmations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", r.String())))
	}
	return &ConfirmOutput{Result: r}
}
