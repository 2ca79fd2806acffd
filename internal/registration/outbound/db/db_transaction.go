package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
	"github.com/pedrosfaria2/email-verifier/internal/registration/entity"
)

// ConfirmRegistration marks the pending request confirmed and inserts the
// registration in one transaction. The update only matches the code hash
// that was verified, so a request replaced in between yields
// goerror.ErrNotFound.
func (s *DB) ConfirmRegistration(ctx context.Context, data entity.ConfirmRegistration) (err error) {
	ctx, span := s.startSpan(ctx, "ConfirmRegistration")
	defer func() { s.endSpan(span, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rollback", "error", rErr)
		}
	}()

	const qMark = `UPDATE registration_requests
		SET confirmed_at = COALESCE(confirmed_at, $3)
		WHERE email = $1 AND code_hash = $2`

	tag, err := tx.Exec(ctx, qMark, data.Email, data.CodeHash, data.ConfirmedAt)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		err = goerror.ErrNotFound
		return err
	}

	const qInsert = `INSERT INTO registrations (email, confirmed_at)
		VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING`

	if _, err = tx.Exec(ctx, qInsert, data.Email, data.ConfirmedAt); err != nil {
		err = s.mapError(err)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		err = s.mapError(err)
		return err
	}

	return nil
}
