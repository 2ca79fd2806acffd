package inbound

import (
	"context"
	"log/slog"
	"time"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/goroutine"
	"github.com/pedrosfaria2/email-verifier/internal/registration/usecase"
)

// RegisterPurgeJob periodically removes confirmed pending requests older
// than retention. A non-positive interval disables the job.
func RegisterPurgeJob(ctx context.Context, routine *goroutine.Manager, uc ucJob, interval, retention time.Duration) {
	if interval <= 0 {
		slog.InfoContext(ctx, "registration purge job disabled")
		return
	}

	routine.Go(ctx, func(pCtx context.Context) error {
		slog.InfoContext(pCtx, "Running job for purging confirmed registration requests", "interval", interval, "retention", retention)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-pCtx.Done():
				return nil
			case <-ticker.C:
				if _, err := uc.PurgeConfirmed(pCtx, usecase.PurgeConfirmedInput{Retention: retention}); err != nil {
					slog.ErrorContext(pCtx, "purge confirmed registration requests failed", "error", err)
				}
			}
		}
	})
}
