package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedrosfaria2/email-verifier/internal/registration/entity"
)

func (s *DB) GetRegistrationRequest(ctx context.Context, email string) (_ *entity.RegistrationRequest, err error) {
	ctx, span := s.startSpan(ctx, "GetRegistrationRequest")
	defer func() { s.endSpan(span, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const q = `SELECT email, code_hash, created_at, confirmed_at
		FROM registration_requests
		WHERE email = $1`

	var (
		req         entity.RegistrationRequest
		confirmedAt pgtype.Timestamptz
	)
	if err = s.conn.QueryRow(ctx, q, email).Scan(&req.Email, &req.CodeHash, &req.CreatedAt, &confirmedAt); err != nil {
		err = s.mapError(err)
		return nil, err
	}
	if confirmedAt.Valid {
		at := confirmedAt.Time
		req.ConfirmedAt = &at
	}

	return &req, nil
}

func (s *DB) GetRegistration(ctx context.Context, email string) (_ *entity.Registration, err error) {
	ctx, span := s.startSpan(ctx, "GetRegistration")
	defer func() { s.endSpan(span, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const q = `SELECT email, confirmed_at FROM registrations WHERE email = $1`

	var reg entity.Registration
	if err = s.conn.QueryRow(ctx, q, email).Scan(&reg.Email, &reg.ConfirmedAt); err != nil {
		err = s.mapError(err)
		return nil, err
	}

	return &reg, nil
}
