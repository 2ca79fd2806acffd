package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/clock"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/config"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/goroutine"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/hash"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/messaging"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/router"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/uid"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/validator"
	"github.com/pedrosfaria2/email-verifier/internal/registration/entity"
	"github.com/pedrosfaria2/email-verifier/internal/registration/inbound"
	"github.com/pedrosfaria2/email-verifier/internal/registration/outbound/db"
	"github.com/pedrosfaria2/email-verifier/internal/registration/outbound/memory"
	"github.com/pedrosfaria2/email-verifier/internal/registration/outbound/mq"
	"github.com/pedrosfaria2/email-verifier/internal/registration/usecase"
	"github.com/pedrosfaria2/email-verifier/internal/shared/event"
	"github.com/sethvargo/go-retry"
)

// Dependency carries what the registration module needs. When DBConn is nil
// the module keeps its state in process memory.
type Dependency struct {
	Ctx        context.Context            `validate:"required"`
	DBConn     *pgxpool.Pool
	Exchange   *messaging.Exchange        `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Code       uid.StringID               `validate:"required"`
	HMAC       hash.Hash                  `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	Router     *router.Router             `validate:"required"`
}

type repository interface {
	GetRegistrationRequest(ctx context.Context, email string) (*entity.RegistrationRequest, error)
	GetRegistration(ctx context.Context, email string) (*entity.Registration, error)
	UpsertRegistrationRequest(ctx context.Context, req entity.RegistrationRequest) error
	ConfirmRegistration(ctx context.Context, data entity.ConfirmRegistration) error
	PurgeConfirmedRequests(ctx context.Context, before time.Time) (int64, error)
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	queue := strings.TrimSpace(dep.Config.GetString("registration.request.queue"))
	if queue == "" {
		queue = event.RegistrationRequestDefaultQueue
	}
	weight := strings.TrimSpace(dep.Config.GetString("registration.request.routing_key"))
	if weight == "" {
		weight = event.RegistrationRequestDefaultWeight
	}

	if err := DeclareTopology(dep.Ctx, dep.Exchange, queue, weight); err != nil {
		return err
	}

	repoDB, err := newRepoDB(dep)
	if err != nil {
		return err
	}
	repoMsg := mq.NewMessaging(dep.Exchange, dep.Instrument)

	uc := usecase.NewRegistration(usecase.Dependency{
		RepoDB:        repoDB,
		RepoMessaging: repoMsg,
		Validator:     dep.Validator,
		HMAC:          dep.HMAC,
		CodeGenerator: dep.Code,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)
	inbound.RegisterMQConsumer(dep.Ctx, inbound.ConsumerConfig{
		Queue:          queue,
		Concurrency:    dep.Config.GetInt("registration.request.concurrency"),
		HandlerTimeout: dep.Config.GetDuration("messaging.handler_timeout"),
		MaxDeliveries:  dep.Config.GetInt("messaging.dead_letter.max_deliveries"),
	}, dep.Goroutine, dep.Exchange, dep.UUID, uc, dep.Instrument)
	inbound.RegisterPurgeJob(dep.Ctx, dep.Goroutine, uc,
		dep.Config.GetDuration("registration.purge.interval"),
		dep.Config.GetDuration("registration.purge.retention"),
	)

	return nil
}

func newRepoDB(dep Dependency) (repository, error) {
	if dep.DBConn == nil {
		slog.WarnContext(dep.Ctx, "registration module running with in-memory store")
		return memory.NewStore(), nil
	}

	store := db.NewDB(dep.DBConn, dep.Instrument, dep.Config.GetDuration("database.query_timeout"))
	if err := store.EnsureSchema(dep.Ctx); err != nil {
		return nil, fmt.Errorf("registration: ensure schema: %w", err)
	}

	return store, nil
}

// DeclareTopology declares both topics, their queues and bindings. Every
// step is idempotent so all instances can run it at startup. Registry
// failures are retried with a capped fibonacci backoff.
func DeclareTopology(ctx context.Context, ex *messaging.Exchange, requestQueue, weight string) error {
	b := retry.NewFibonacci(200 * time.Millisecond)
	b = retry.WithCappedDuration(2*time.Second, b)
	b = retry.WithMaxRetries(5, b)

	steps := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"declare notification topic", func(ctx context.Context) error {
			return ex.DeclareTopic(ctx, event.RegistrationNotificationTopic, messaging.TopicDirect)
		}},
		{"declare notification queue", func(ctx context.Context) error {
			return ex.DeclareQueue(ctx, event.RegistrationNotificationQueue)
		}},
		{"bind notification queue", func(ctx context.Context) error {
			return ex.Bind(ctx, event.RegistrationNotificationTopic, event.RegistrationNotificationQueue, event.RegistrationNotificationRoutingKey)
		}},
		{"declare request topic", func(ctx context.Context) error {
			return ex.DeclareTopic(ctx, event.RegistrationRequestTopic, messaging.TopicPartitioned)
		}},
		{"declare request queue", func(ctx context.Context) error {
			return ex.DeclareQueue(ctx, requestQueue)
		}},
		{"bind request queue", func(ctx context.Context) error {
			return ex.Bind(ctx, event.RegistrationRequestTopic, requestQueue, weight)
		}},
	}

	for _, step := range steps {
		err := retry.Do(ctx, b, func(ctx context.Context) error {
			err := step.fn(ctx)
			if err != nil && isTransient(err) {
				slog.WarnContext(ctx, "topology step failed, retrying", "step", step.name, "error", err)
				return retry.RetryableError(err)
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("registration: %s: %w", step.name, err)
		}
	}

	slog.InfoContext(ctx, "registration topology declared", "request_queue", requestQueue, "weight", weight)
	return nil
}

// isTransient separates configuration mistakes, which retrying cannot fix,
// from registry or broker hiccups.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, messaging.ErrNameRequired),
		errors.Is(err, messaging.ErrInvalidTopicKind),
		errors.Is(err, messaging.ErrTopicKindMismatch),
		errors.Is(err, messaging.ErrInvalidWeight):
		return false
	default:
		return true
	}
}
