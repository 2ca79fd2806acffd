package db

import (
	"context"

	"github.com/pedrosfaria2/email-verifier/internal/registration/entity"
)

// UpsertRegistrationRequest stores req, replacing the code of an existing
// request for the same email and clearing its confirmation.
func (s *DB) UpsertRegistrationRequest(ctx context.Context, req entity.RegistrationRequest) (err error) {
	ctx, span := s.startSpan(ctx, "UpsertRegistrationRequest")
	defer func() { s.endSpan(span, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const q = `INSERT INTO registration_requests (email, code_hash, created_at, confirmed_at)
		VALUES ($1, $2, $3, NULL)
		ON CONFLICT (email) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
			created_at = EXCLUDED.created_at,
			confirmed_at = NULL`

	_, err = s.conn.Exec(ctx, q, req.Email, req.CodeHash, req.CreatedAt)
	err = s.mapError(err)
	return err
}
