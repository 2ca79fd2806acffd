package db

import (
	"context"
	"time"
)

// PurgeConfirmedRequests deletes pending requests confirmed before the given
// instant and returns how many were removed.
func (s *DB) PurgeConfirmedRequests(ctx context.Context, before time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "PurgeConfirmedRequests")
	defer func() { s.endSpan(span, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const q = `DELETE FROM registration_requests
		WHERE confirmed_at IS NOT NULL AND confirmed_at < $1`

	tag, err := s.conn.Exec(ctx, q, before)
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}
	return tag.RowsAffected(), nil
}
