package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
)

type PurgeConfirmedInput struct {
	Retention time.Duration `validate:"gt=0"`
}

// PurgeConfirmed deletes pending requests confirmed more than Retention ago.
// Until then a repeated confirmation with the same code keeps succeeding.
func (s *Usecase) PurgeConfirmed(ctx context.Context, in PurgeConfirmedInput) (int64, error) {
	ctx, span := s.startSpan(ctx, "PurgeConfirmed")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return 0, goerror.NewInvalidInput(err)
	}

	n, err := s.repoDB.PurgeConfirmedRequests(ctx, s.clock.Now().Add(-in.Retention))
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo purge confirmed requests", "error", err)
		return 0, goerror.NewServer(err)
	}

	if n > 0 {
		slog.InfoContext(ctx, "purged confirmed registration requests", "count", n)
	}
	return n, nil
}
