package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/zapshift/config"
	"github.com/BearBump/zapshift/internal/services/reconciler"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	reconciler *reconciler.Reconciler
	cfg        *config.Config
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts, log zerolog.Logger) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: workerRouter(opts)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	log.Info().Str("addr", lis.Addr().String()).Msg("worker HTTP server listening")
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func workerRouter(opts workerHTTPOpts) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ready"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		if opts.reconciler == nil {
			writeJSON(w, map[string]string{"error": "reconciler not wired"})
			return
		}
		writeJSON(w, opts.reconciler.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		if opts.cfg == nil {
			writeJSON(w, map[string]string{"error": "config not wired"})
			return
		}
		// operational settings only, no secrets
		s := settingsFrom(opts.cfg)
		writeJSON(w, map[string]any{
			"pollIntervalSeconds": s.pollInterval.Seconds(),
			"batchSize":           s.batchSize,
			"concurrency":         s.concurrency,
			"leaseSeconds":        s.lease.Seconds(),
			"rateLimitPerMinute":  s.rlPerMin,
			"recheckOpenSeconds":  opts.cfg.Worker.RecheckOpenSeconds,
			"jobConcurrency":      opts.cfg.Worker.JobConcurrency,
			"topic":               opts.cfg.Kafka.CheckoutCheckedTopicName,
			"paymentsProvider":    opts.cfg.Payments.Provider,
			"storageDriver":       opts.cfg.Storage.Driver,
		})
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if opts.reconciler == nil {
			writeJSON(w, map[string]string{"error": "reconciler not wired"})
			return
		}
		opts.reconciler.Trigger()
		writeJSON(w, map[string]bool{"triggered": true})
	})

	reg := prometheus.NewRegistry()
	if opts.reconciler != nil {
		registerReconcilerMetrics(reg, opts.reconciler)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if opts.swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, opts.swaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(opts.swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}
	return r
}

func registerReconcilerMetrics(reg prometheus.Registerer, rc *reconciler.Reconciler) {
	counter := func(name, help string, v func(reconciler.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, func() float64 {
			return float64(v(rc.Stats()))
		})
	}
	reg.MustRegister(
		counter("reconciler_claimed_total", "Checkouts claimed for a processor check.",
			func(s reconciler.Stats) int64 { return s.TotalClaimed }),
		counter("reconciler_processed_total", "Checkouts checked with the processor.",
			func(s reconciler.Stats) int64 { return s.TotalProcessed }),
		counter("reconciler_errors_total", "Checkout checks that failed to publish.",
			func(s reconciler.Stats) int64 { return s.TotalErrors }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "reconciler_in_flight", Help: "Checkout checks in progress."},
			func() float64 { return float64(rc.Stats().InFlight) }),
	)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
