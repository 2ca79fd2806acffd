package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/clock"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/config"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/goroutine"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/hash"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/idempotency"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/mail"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/messaging"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/router"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/uid"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/validator"
	"github.com/redis/go-redis/v9"
)

// closer releases one resource during Stop.
type closer struct {
	name string
	fn   func(context.Context) error
}

// App owns every long-lived dependency of the service. Modules receive what
// they need from it and register their routes, consumers and jobs on it.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	config config.Config
	ins    instrument.Instrumentation

	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	hmac      hash.Hash
	uuid      uid.StringID
	code      uid.StringID

	// nil when the matching driver is disabled
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency

	mail      mail.Mail
	messaging messaging.Messaging
	exchange  *messaging.Exchange

	router     *router.Router
	httpServer *http.Server

	closers []closer
}

// New loads the configuration file and wires the service. It exits the
// process when any dependency cannot be set up.
func New() *App {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}
	return newApp(cfg)
}

func newApp(cfg config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{ctx: ctx, cancel: cancel, config: cfg}

	for _, step := range []func(){
		a.initConfig,
		a.initInstrument,
		a.initLibraries,
		a.initDatabase,
		a.initCache,
		a.initMail,
		a.initMessaging,
		a.initHTTPServer,
		a.initModules,
		a.initClosers,
	} {
		step()
	}

	return a
}
