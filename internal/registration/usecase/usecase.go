package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/clock"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/hash"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/uid"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/validator"
	"github.com/pedrosfaria2/email-verifier/internal/registration/entity"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type RegistrationNotificationEvent struct {
	Email            string
	ConfirmationCode string
}

type repoMessaging interface {
	PublishRegistrationRequest(ctx context.Context, email string) error
	PublishRegistrationNotification(ctx context.Context, msg RegistrationNotificationEvent) error
}

type repoDB interface {
	GetRegistrationRequest(ctx context.Context, email string) (*entity.RegistrationRequest, error)
	GetRegistration(ctx context.Context, email string) (*entity.Registration, error)
	UpsertRegistrationRequest(ctx context.Context, req entity.RegistrationRequest) error
	ConfirmRegistration(ctx context.Context, data entity.ConfirmRegistration) error
	PurgeConfirmedRequests(ctx context.Context, before time.Time) (int64, error)
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	validator     validator.Validator
	hmac          hash.Hash
	code          uid.StringID
	clock         clock.Clocker
	ins           instrument.Instrumentation
	confirmations metric.Int64Counter
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	Validator     validator.Validator
	HMAC          hash.Hash
	// CodeGenerator produces confirmation codes.
	CodeGenerator uid.StringID
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
}

func NewRegistration(dep Dependency) *Usecase {
	uc := &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		validator:     dep.Validator,
		hmac:          dep.HMAC,
		code:          dep.CodeGenerator,
		clock:         dep.Clock,
		ins:           dep.Instrument,
	}

	counter, err := dep.Instrument.Meter("registration.usecase").Int64Counter(
		"registration.confirmations",
		metric.WithDescription("Confirmation attempts by result"),
	)
	if err != nil {
		slog.Error("failed to create registration confirmations counter", "error", err)
	}
	uc.confirmations = counter

	return uc
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("registration.usecase").Start(ctx, name)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (s *Usecase) codeHash(code string) (string, error) {
	h, err := s.hmac.Hash(code)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
