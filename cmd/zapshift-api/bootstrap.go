package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/zapshift/config"
	"github.com/BearBump/zapshift/internal/api/httpapi"
	"github.com/BearBump/zapshift/internal/broker/kafka"
	"github.com/BearBump/zapshift/internal/cache/rediscache"
	"github.com/BearBump/zapshift/internal/identity"
	"github.com/BearBump/zapshift/internal/identity/clerkverifier"
	"github.com/BearBump/zapshift/internal/identity/jwtverifier"
	gw "github.com/BearBump/zapshift/internal/integrations/payments"
	"github.com/BearBump/zapshift/internal/integrations/payments/fake"
	"github.com/BearBump/zapshift/internal/integrations/payments/stripegw"
	"github.com/BearBump/zapshift/internal/jobs"
	"github.com/BearBump/zapshift/internal/logger"
	"github.com/BearBump/zapshift/internal/services/parcels"
	"github.com/BearBump/zapshift/internal/services/payments"
	"github.com/BearBump/zapshift/internal/services/riders"
	"github.com/BearBump/zapshift/internal/services/users"
	"github.com/BearBump/zapshift/internal/storage"
	"github.com/BearBump/zapshift/internal/storage/driver"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type apiApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	opts     apiOpts
	api      *httpapi.API
	payments *payments.Service
	consumer *kafka.Consumer

	closers []func()
}

func mustBootstrapAPI(flags config.Flags) *apiApp {
	cfg, err := config.LoadConfig(flags.ConfigPath)
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}
	if flags.Addr != "" {
		cfg.HTTP.Addr = flags.Addr
	}
	log := logger.New("zapshift-api", cfg.Env, cfg.Log.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &apiApp{ctx: ctx, cancel: cancel, log: log}

	st, err := driver.OpenWithRetry(ctx, cfg, 60*time.Second)
	if err != nil {
		panic(err)
	}
	a.closers = append(a.closers, st.Close)

	rc := rediscache.New(cfg.Redis.Addr())
	a.closers = append(a.closers, func() { _ = rc.Close() })

	jc := jobs.NewClient(cfg.Redis.Addr())
	a.closers = append(a.closers, func() { _ = jc.Close() })

	usersSvc := users.New(st, rc, time.Duration(cfg.Cache.RoleTTLSeconds)*time.Second)
	a.payments = payments.New(st, newGateway(cfg), payments.Config{
		PublicBaseURL: cfg.HTTP.PublicBaseURL,
		Currency:      cfg.Payments.Currency,
		RecheckAfter:  time.Duration(cfg.Worker.RecheckOpenSeconds) * time.Second,
	}).WithNotifier(jc)

	a.api = httpapi.New(httpapi.Deps{
		Parcels:     parcels.New(st),
		Payments:    a.payments,
		Users:       usersSvc,
		Riders:      riders.New(st, usersSvc).WithNotifier(jc),
		Verifier:    newVerifier(cfg),
		Log:         log,
		SwaggerPath: cfg.HTTP.SwaggerPath,
		CORSOrigins: cfg.HTTP.CORSAllowedOrigins,
		Ready:       readiness(st, rc),
	})

	// the memory driver is for local runs without infrastructure
	if cfg.Storage.Driver != "memory" {
		a.consumer = kafka.NewConsumer(cfg.Kafka.Brokers(), cfg.Kafka.CheckoutCheckedTopicName, cfg.Kafka.ConsumerGroup).
			WithRetry(5, time.Second)
		a.closers = append(a.closers, func() { _ = a.consumer.Close() })
	}

	a.opts = apiOpts{
		httpAddr:      cfg.HTTP.Addr,
		readTimeout:   time.Duration(cfg.HTTP.ReadTimeoutSeconds) * time.Second,
		writeTimeout:  time.Duration(cfg.HTTP.WriteTimeoutSeconds) * time.Second,
		topic:         cfg.Kafka.CheckoutCheckedTopicName,
		consumerGroup: cfg.Kafka.ConsumerGroup,

		consumerBackoff: time.Second,
	}
	return a
}

func newVerifier(cfg *config.Config) identity.Verifier {
	if cfg.Auth.Provider == "clerk" {
		return clerkverifier.New(cfg.Auth.ClerkSecretKey)
	}
	return jwtverifier.New(cfg.Auth.JWTSecret)
}

func newGateway(cfg *config.Config) gw.Client {
	if cfg.Payments.Provider == "fake" {
		return fake.New()
	}
	return stripegw.New(cfg.Payments.StripeSecretKey, cfg.Payments.StripeWebhookSecret)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func readiness(st storage.Store, rc pinger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			return errors.Wrap(err, "storage")
		}
		if err := rc.Ping(ctx); err != nil {
			return errors.Wrap(err, "redis")
		}
		return nil
	}
}

func (a *apiApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *apiApp) Run() error {
	var consumer kafkaConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runAPI(a.ctx, a.opts, a.api.Handler(nil), consumer, a.payments, a.log)
}
