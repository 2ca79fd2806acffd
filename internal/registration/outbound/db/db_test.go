//go:build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/goerror"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/registration/entity"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

type DBSuite struct {
	suite.Suite

	ctr  *tcpostgres.PostgresContainer
	pool *pgxpool.Pool
	db   *DB
}

func TestDBSuite(t *testing.T) {
	suite.Run(t, new(DBSuite))
}

func (s *DBSuite) SetupSuite() {
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("email_verifier"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.ctr = ctr

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	pool, err := pgxpool.New(ctx, dsn)
	s.Require().NoError(err)
	s.pool = pool

	ins, err := instrument.New(ctx, &instrument.Config{ServiceName: "test"})
	s.Require().NoError(err)

	s.db = NewDB(pool, ins, 5*time.Second)
	s.Require().NoError(s.db.EnsureSchema(ctx))
	// idempotent
	s.Require().NoError(s.db.EnsureSchema(ctx))
}

func (s *DBSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.ctr != nil {
		s.NoError(testcontainers.TerminateContainer(s.ctr))
	}
}

func (s *DBSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), "TRUNCATE registration_requests, registrations")
	s.Require().NoError(err)
}

func (s *DBSuite) TestUpsertReplaces() {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	s.Require().NoError(s.db.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{Email: "a@example.com", CodeHash: "h1", CreatedAt: now}))
	s.Require().NoError(s.db.ConfirmRegistration(ctx, entity.ConfirmRegistration{Email: "a@example.com", CodeHash: "h1", ConfirmedAt: now}))
	s.Require().NoError(s.db.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{Email: "a@example.com", CodeHash: "h2", CreatedAt: now.Add(time.Minute)}))

	req, err := s.db.GetRegistrationRequest(ctx, "a@example.com")
	s.Require().NoError(err)
	s.Equal("h2", req.CodeHash)
	s.Nil(req.ConfirmedAt)
	s.True(req.CreatedAt.Equal(now.Add(time.Minute)))

	var n int
	s.Require().NoError(s.pool.QueryRow(ctx, "SELECT count(*) FROM registration_requests").Scan(&n))
	s.Equal(1, n)
}

func (s *DBSuite) TestGetNotFound() {
	_, err := s.db.GetRegistrationRequest(context.Background(), "nobody@example.com")
	s.ErrorIs(err, goerror.ErrNotFound)

	_, err = s.db.GetRegistration(context.Background(), "nobody@example.com")
	s.ErrorIs(err, goerror.ErrNotFound)
}

func (s *DBSuite) TestConfirmIsIdempotentAndGuarded() {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	s.Require().NoError(s.db.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{Email: "a@example.com", CodeHash: "h1", CreatedAt: now}))

	err := s.db.ConfirmRegistration(ctx, entity.ConfirmRegistration{Email: "a@example.com", CodeHash: "stale", ConfirmedAt: now})
	s.ErrorIs(err, goerror.ErrNotFound)

	s.Require().NoError(s.db.ConfirmRegistration(ctx, entity.ConfirmRegistration{Email: "a@example.com", CodeHash: "h1", ConfirmedAt: now}))
	s.Require().NoError(s.db.ConfirmRegistration(ctx, entity.ConfirmRegistration{Email: "a@example.com", CodeHash: "h1", ConfirmedAt: now.Add(time.Hour)}))

	reg, err := s.db.GetRegistration(ctx, "a@example.com")
	s.Require().NoError(err)
	s.True(reg.ConfirmedAt.Equal(now))

	req, err := s.db.GetRegistrationRequest(ctx, "a@example.com")
	s.Require().NoError(err)
	s.Require().NotNil(req.ConfirmedAt)
	s.True(req.ConfirmedAt.Equal(now))
}

func (s *DBSuite) TestPurgeConfirmedRequests() {
	ctx := context.Background()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Require().NoError(s.db.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{Email: "old@example.com", CodeHash: "h", CreatedAt: old}))
	s.Require().NoError(s.db.ConfirmRegistration(ctx, entity.ConfirmRegistration{Email: "old@example.com", CodeHash: "h", ConfirmedAt: old}))
	s.Require().NoError(s.db.UpsertRegistrationRequest(ctx, entity.RegistrationRequest{Email: "new@example.com", CodeHash: "h", CreatedAt: old}))

	n, err := s.db.PurgeConfirmedRequests(ctx, old.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = s.db.GetRegistrationRequest(ctx, "new@example.com")
	s.NoError(err)
	_, err = s.db.GetRegistration(ctx, "old@example.com")
	s.NoError(err)
}
