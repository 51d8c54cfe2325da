package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/broker/kafka"
	"github.com/BearBump/zapshift/internal/broker/messages"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type apiOpts struct {
	httpAddr     string
	readTimeout  time.Duration
	writeTimeout time.Duration

	topic         string
	consumerGroup string
	// first restart delay after the consumer gives up; doubles up to maxConsumerBackoff
	consumerBackoff time.Duration

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type checkoutApplier interface {
	ApplyCheckoutChecked(ctx context.Context, msg messages.CheckoutChecked) error
}

func runAPI(ctx context.Context, opts apiOpts, handler http.Handler, consumer kafkaConsumer, payments checkoutApplier, log zerolog.Logger) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, handler, opts, log)
	}()

	if consumer != nil {
		go runConsumer(ctx, consumer, checkoutCheckedHandler(ctx, payments, log), opts, log)
	}

	select {
	case <-ctx.Done():
		<-httpErr
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

const maxConsumerBackoff = 30 * time.Second

// runConsumer keeps the consumer alive until ctx ends: a Consume call that
// gives up is restarted after a growing delay.
func runConsumer(ctx context.Context, consumer kafkaConsumer, handler func(key, value []byte) error, opts apiOpts, log zerolog.Logger) {
	backoff := opts.consumerBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	delay := backoff

	for {
		log.Info().Str("topic", opts.topic).Str("group", opts.consumerGroup).Msg("kafka consumer started")
		started := time.Now()
		err := consumer.Consume(ctx, handler)
		if ctx.Err() != nil {
			return
		}
		// a consumer that ran for a while is not crash looping
		if time.Since(started) > maxConsumerBackoff {
			delay = backoff
		}
		log.Error().Err(err).Dur("retry_in", delay).Msg("kafka consumer stopped")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		delay = min(delay*2, maxConsumerBackoff)
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, handler http.Handler, opts apiOpts, log zerolog.Logger) error {
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  opts.readTimeout,
		WriteTimeout: opts.writeTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", lis.Addr().String()).Msg("HTTP server listening")
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// checkoutCheckedHandler applies worker messages. Malformed messages are
// skipped; anything else is retried by the consumer.
func checkoutCheckedHandler(ctx context.Context, svc checkoutApplier, log zerolog.Logger) func(key, value []byte) error {
	return func(_ []byte, value []byte) error {
		var m messages.CheckoutChecked
		if err := json.Unmarshal(value, &m); err != nil {
			return kafka.Permanent(errors.Wrap(err, "decode checkout checked"))
		}
		l := log.With().Str("session_id", m.SessionID).Logger()
		err := svc.ApplyCheckoutChecked(l.WithContext(ctx), m)
		if errors.Is(err, apperr.Invalid) || errors.Is(err, apperr.NotFound) {
			return kafka.Permanent(err)
		}
		return err
	}
}
