package app

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nsqio/go-nsq"
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
	"github.com/rs/cors"
	"github.com/samber/lo"
	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const (
	driverPostgres = "postgres"
	driverMemory   = "memory"
	driverSMTP     = "smtp"
	driverLog      = "log"
	driverRedis    = "redis"

	scopePubSub = "https://www.googleapis.com/auth/pubsub"
)

func loadConfig() (config.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "/config/config.yaml"
		if os.Getenv("LOCAL") == "true" {
			path = "./config/config.yaml"
		}
	}

	return config.NewViper(path)
}

func (a *App) initConfig() {
	required := []string{"app.server.http.address", "registration.code_secret"}
	if a.databaseDriver() == driverPostgres {
		required = append(required, "database.url")
	}
	if a.config.GetString("messaging.registry") == driverRedis {
		required = append(required, "redis.url")
	}

	if err := config.Require(a.config, required...); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if tz := a.config.GetString("app.tz"); tz != "" {
		//nolint:errcheck,gosec // ignore error
		os.Setenv("TZ", tz)
	}
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      lo.CoalesceOrEmpty(a.config.GetString("instrument.service_name"), "email-verifier"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: float64(a.config.GetInt("instrument.trace_sample_percent")) / 100,
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
		LogLevel:         a.config.GetString("instrument.log_level"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.code = uid.NewRandomUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))
	a.hmac = hash.NewHMACSHA256([]byte(a.config.GetString("registration.code_secret")))

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator
}

func (a *App) databaseDriver() string {
	return lo.CoalesceOrEmpty(strings.TrimSpace(a.config.GetString("database.driver")), driverPostgres)
}

func (a *App) initDatabase() {
	if a.databaseDriver() == driverMemory {
		slog.Warn("database driver is memory, registrations are lost on restart")
		return
	}

	config, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		slog.Error("failed to parse DB connection string.", "error", err)
		os.Exit(1)
	}

	if v := a.config.GetInt("database.pool.max_conns"); v > 0 {
		config.MaxConns = int32(v) //nolint:gosec // small config value
	}
	if v := a.config.GetInt("database.pool.min_conns"); v > 0 {
		config.MinConns = int32(v) //nolint:gosec // small config value
	}
	if v := a.config.GetSecond("database.pool.max_conn_lifetime_seconds"); v > 0 {
		config.MaxConnLifetime = v
	}
	if v := a.config.GetSecond("database.pool.max_conn_idle_seconds"); v > 0 {
		config.MaxConnIdleTime = v
	}
	if v := a.config.GetSecond("database.pool.health_check_period_seconds"); v > 0 {
		config.HealthCheckPeriod = v
	}

	pool, err := pgxpool.NewWithConfig(a.ctx, config)
	if err != nil {
		slog.Error("failed to create DB connection pool", "error", err)
		os.Exit(1)
	}

	if err := a.pingWithRetry("database", pool.Ping); err != nil {
		slog.Error("failed to ping DB", "error", err)
		os.Exit(1)
	}

	a.dbConn = pool
}

func (a *App) initCache() {
	url := strings.TrimSpace(a.config.GetString("redis.url"))
	if url == "" {
		slog.Warn("redis is not configured, notification deduplication is disabled")
		return
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	if err := a.pingWithRetry("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
	a.idemp = idempotency.New(a.cacheConn)
}

// pingWithRetry gives containers started alongside the service a few seconds
// to accept connections.
func (a *App) pingWithRetry(name string, ping func(ctx context.Context) error) error {
	b := retry.NewFibonacci(200 * time.Millisecond)
	b = retry.WithCappedDuration(2*time.Second, b)
	b = retry.WithMaxDuration(lo.CoalesceOrEmpty(a.config.GetSecond("app.startup_timeout_seconds"), 15*time.Second), b)

	return retry.Do(a.ctx, b, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := ping(pingCtx); err != nil {
			slog.WarnContext(ctx, "dependency not ready", "name", name, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (a *App) initMail() {
	driver := lo.CoalesceOrEmpty(strings.TrimSpace(a.config.GetString("mail.driver")), driverSMTP)
	if driver == driverLog {
		a.mail = mail.NewLog()
		return
	}

	mail, err := mail.NewSMTP(mail.SMTPConfig{
		Host:     a.config.GetString("mail.host"),
		Port:     a.config.GetInt("mail.port"),
		Username: a.config.GetString("mail.username"),
		Password: a.config.GetString("mail.password"),
		From:     a.config.GetString("mail.from"),
		Timeout:  a.config.GetSecond("mail.timeout_seconds"),
	})
	if err != nil {
		slog.Error("failed to init mail", "error", err)
		os.Exit(1)
	}

	a.mail = mail
}

func (a *App) initMessaging() {
	driver := a.config.GetString("messaging.driver")
	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr:         a.config.GetString("messaging.nsq.producer_addr"),
			ConsumerNSQDAddrs:    a.config.GetArray("messaging.nsq.consumer_nsqd_addrs"),
			ConsumerLookupdAddrs: a.config.GetArray("messaging.nsq.consumer_lookupd_addrs"),
			ProducerConfig: func() *nsq.Config {
				cfg := nsq.NewConfig()
				cfg.DialTimeout = lo.CoalesceOrEmpty(a.config.GetSecond("messaging.nsq.producer_config.dial_timeout_seconds"), cfg.DialTimeout)
				cfg.ReadTimeout = lo.CoalesceOrEmpty(a.config.GetSecond("messaging.nsq.producer_config.read_timeout_seconds"), cfg.ReadTimeout)
				cfg.WriteTimeout = lo.CoalesceOrEmpty(a.config.GetSecond("messaging.nsq.producer_config.write_timeout_seconds"), cfg.WriteTimeout)
				return cfg
			}(),
			ConsumerConfig: func() *nsq.Config {
				cfg := nsq.NewConfig()
				cfg.MaxInFlight = lo.CoalesceOrEmpty(a.config.GetInt("messaging.nsq.consumer_config.max_in_flight"), cfg.MaxInFlight)
				cfg.LookupdPollInterval = lo.CoalesceOrEmpty(a.config.GetSecond("messaging.nsq.consumer_config.lookupd_poll_interval_seconds"), cfg.LookupdPollInterval)
				cfg.DefaultRequeueDelay = lo.CoalesceOrEmpty(a.config.GetSecond("messaging.nsq.consumer_config.default_requeue_delay_seconds"), cfg.DefaultRequeueDelay)
				cfg.MaxRequeueDelay = lo.CoalesceOrEmpty(a.config.GetSecond("messaging.nsq.consumer_config.max_requeue_delay_seconds"), cfg.MaxRequeueDelay)
				return cfg
			}(),
		},
		NATS: messaging.NATSConfig{
			URL: a.config.GetString("messaging.nats.url"),
			Options: []nats.Option{
				nats.Name(lo.CoalesceOrEmpty(a.config.GetString("messaging.nats.name"), "email-verifier")),
				nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(lo.CoalesceOrEmpty(a.config.GetSecond("messaging.nats.timeout_seconds"), nats.DefaultTimeout)),
				nats.ReconnectWait(lo.CoalesceOrEmpty(a.config.GetSecond("messaging.nats.reconnect_wait_seconds"), nats.DefaultReconnectWait)),
				nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
			},
		},
		Kafka: messaging.KafkaConfig{
			Brokers:           a.config.GetArray("messaging.kafka.brokers"),
			Dialer:            a.kafkaDialer(),
			Partitions:        a.config.GetInt("messaging.kafka.partitions"),
			ReplicationFactor: a.config.GetInt("messaging.kafka.replication_factor"),
		},
		PubSub: messaging.PubSubConfig{
			ProjectID:          a.config.GetString("messaging.pubsub.project_id"),
			ClientOptions:      a.pubsubOptions(),
			AckDeadlineSeconds: int32(a.config.GetInt("messaging.pubsub.ack_deadline_seconds")), //nolint:gosec // small config value
		},
		Memory: messaging.MemoryConfig{
			RedeliveryDelay: a.config.GetDuration("messaging.memory.redelivery_delay"),
		},
	})
	if err != nil {
		slog.Error("failed to init messaging", "error", err, "driver", driver)
		os.Exit(1)
	}

	var registry messaging.BindingRegistry = messaging.NewMemoryRegistry()
	if a.config.GetString("messaging.registry") == driverRedis {
		registry = messaging.NewRedisRegistry(a.cacheConn, lo.CoalesceOrEmpty(a.config.GetString("messaging.registry_prefix"), "email-verifier:exchange:"))
	}

	a.messaging = client
	a.exchange = messaging.NewExchange(client, registry,
		messaging.WithRouteCacheTTL(a.config.GetDuration("messaging.route_cache_ttl")),
		messaging.WithMeter(a.ins.Meter("messaging.exchange")),
	)
}

func (a *App) kafkaDialer() *kafka.Dialer {
	d := &kafka.Dialer{
		Timeout:   lo.CoalesceOrEmpty(a.config.GetSecond("messaging.kafka.dial_timeout_seconds"), 10*time.Second),
		DualStack: true,
		ClientID:  lo.CoalesceOrEmpty(a.config.GetString("messaging.kafka.client_id"), "email-verifier"),
	}
	if a.config.GetBool("messaging.kafka.tls") {
		d.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return d
}

func (a *App) pubsubOptions() []option.ClientOption {
	opts := []option.ClientOption{}
	if a.config.GetBool("messaging.pubsub.without_auth") {
		opts = append(opts, option.WithoutAuthentication())
	}
	if v := strings.TrimSpace(a.config.GetString("messaging.pubsub.credentials_file")); v != "" {
		// #nosec G304 -- path is from trusted config file.
		credsJSON, err := os.ReadFile(v)
		if err != nil {
			slog.Error("failed to read pubsub credentials file", "error", err)
			os.Exit(1)
		}
		creds, err := google.CredentialsFromJSON(a.ctx, credsJSON, scopePubSub)
		if err != nil {
			slog.Error("failed to parse pubsub credentials file", "error", err)
			os.Exit(1)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	if v := a.config.GetBinary("messaging.pubsub.credentials_json"); len(v) > 0 {
		creds, err := google.CredentialsFromJSON(a.ctx, v, scopePubSub)
		if err != nil {
			slog.Error("failed to parse pubsub credentials json", "error", err)
			os.Exit(1)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	if v := strings.TrimSpace(a.config.GetString("messaging.pubsub.endpoint")); v != "" {
		opts = append(opts, option.WithEndpoint(v))
	}
	return opts
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		Instrument: a.ins,
	})

	a.router.GETRaw("/", http.HandlerFunc(a.handleInfo))
	a.router.GETRaw("/health", http.HandlerFunc(a.handleHealth))

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: lo.CoalesceOrEmpty(a.config.GetSecond("app.server.http.read_header_timeout_seconds"), 5*time.Second),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

func (a *App) initClosers() {
	a.closers = []closer{
		{"messaging", func(context.Context) error { return a.exchange.Close() }},
		{"mail", func(context.Context) error { return a.mail.Close() }},
		{"redis", func(context.Context) error {
			if a.cacheConn == nil {
				return nil
			}
			return a.cacheConn.Close()
		}},
		{"database", func(context.Context) error {
			if a.dbConn != nil {
				a.dbConn.Close()
			}
			return nil
		}},
		{"config", func(context.Context) error { return a.config.Close() }},
		{"instrument", a.ins.Shutdown},
	}
}
