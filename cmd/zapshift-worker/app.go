package main

import (
	"context"
	"time"

	"github.com/BearBump/zapshift/config"
	"github.com/BearBump/zapshift/internal/broker/kafka"
	"github.com/BearBump/zapshift/internal/cache/rediscache"
	"github.com/BearBump/zapshift/internal/integrations/email"
	gw "github.com/BearBump/zapshift/internal/integrations/payments"
	"github.com/BearBump/zapshift/internal/integrations/payments/fake"
	"github.com/BearBump/zapshift/internal/integrations/payments/stripegw"
	"github.com/BearBump/zapshift/internal/jobs"
	"github.com/BearBump/zapshift/internal/services/reconciler"
	"github.com/BearBump/zapshift/internal/storage/driver"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type jobRunner interface {
	Start() error
	Shutdown()
}

type workerFactories struct {
	newStorage     func(ctx context.Context, cfg *config.Config) (repo reconciler.Repository, closeFn func(), err error)
	newProducer    func(cfg *config.Config) reconciler.Producer
	newRateLimiter func(cfg *config.Config) reconciler.RateLimiter
	newGateway     func(cfg *config.Config) gw.Client
	newJobServer   func(cfg *config.Config, log zerolog.Logger) jobRunner
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (reconciler.Repository, func(), error) {
			st, err := driver.OpenWithRetry(ctx, cfg, 60*time.Second)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) reconciler.Producer {
			return kafka.NewProducer(cfg.Kafka.Brokers())
		},
		newRateLimiter: func(cfg *config.Config) reconciler.RateLimiter {
			return rediscache.NewRateLimiter(cfg.Redis.Addr())
		},
		newGateway: func(cfg *config.Config) gw.Client {
			if cfg.Payments.Provider == "fake" {
				return fake.New()
			}
			return stripegw.New(cfg.Payments.StripeSecretKey, cfg.Payments.StripeWebhookSecret)
		},
		newJobServer: func(cfg *config.Config, log zerolog.Logger) jobRunner {
			mailer := email.New(cfg.Email.ResendAPIKey, cfg.Email.From, log)
			return jobs.NewServer(cfg.Redis.Addr(), cfg.Worker.JobConcurrency, mailer, log)
		},
	}
}

type workerSettings struct {
	pollInterval time.Duration
	batchSize    int
	concurrency  int
	lease        time.Duration
	rlPerMin     int64
	planner      reconciler.PlannerConfig
}

func settingsFrom(cfg *config.Config) workerSettings {
	w := cfg.Worker
	s := workerSettings{
		pollInterval: time.Duration(w.PollIntervalSeconds) * time.Second,
		batchSize:    w.BatchSize,
		concurrency:  w.Concurrency,
		lease:        time.Duration(w.LeaseSeconds) * time.Second,
		rlPerMin:     int64(w.RateLimitPerMinute),
		planner: reconciler.PlannerConfig{
			RecheckOpen: time.Duration(w.RecheckOpenSeconds) * time.Second,
			Backoff1:    time.Duration(w.Backoff1Seconds) * time.Second,
			Backoff2:    time.Duration(w.Backoff2Seconds) * time.Second,
			Backoff3:    time.Duration(w.Backoff3Seconds) * time.Second,
			Backoff4:    time.Duration(w.Backoff4Seconds) * time.Second,
		},
	}
	if s.pollInterval <= 0 {
		s.pollInterval = 2 * time.Second
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.concurrency <= 0 {
		s.concurrency = 10
	}
	if s.lease <= 0 {
		s.lease = 120 * time.Second
	}
	if s.rlPerMin <= 0 {
		s.rlPerMin = 120
	}
	return s
}

// RunWorker runs the reconciler, the email job server and the ops HTTP server
// until ctx ends or one of them fails.
func RunWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts, log zerolog.Logger) error {
	s := settingsFrom(cfg)

	repo, closeFn, err := f.newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)
	for _, v := range []any{producer, rl} {
		if c, ok := v.(interface{ Close() error }); ok {
			defer func() { _ = c.Close() }()
		}
	}

	r := reconciler.New(repo, f.newGateway(cfg), producer, rl, cfg.Kafka.CheckoutCheckedTopicName).
		WithSettings(s.pollInterval, s.batchSize, s.concurrency, s.lease, s.rlPerMin).
		WithPlanner(s.planner).
		WithLogger(log)

	js := f.newJobServer(cfg, log)
	if err := js.Start(); err != nil {
		return errors.Wrap(err, "start job server")
	}
	defer js.Shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpOpts.reconciler = r
	httpOpts.cfg = cfg
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, httpOpts, log)
	}()

	log.Info().
		Dur("poll_interval", s.pollInterval).
		Int("batch_size", s.batchSize).
		Int("concurrency", s.concurrency).
		Msg("reconciler started")

	runErr := make(chan error, 1)
	go func() { runErr <- r.Run(ctx) }()

	select {
	case err := <-runErr:
		cancel()
		<-httpErr
		return err
	case err := <-httpErr:
		cancel()
		<-runErr
		if err == nil {
			err = ctx.Err()
		}
		return err
	}
}
