package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/zapshift/config"
	"github.com/BearBump/zapshift/internal/logger"
)

func main() {
	flags, err := config.ParseFlags("zapshift-worker", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg, err := config.LoadConfig(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if flags.Addr != "" {
		cfg.Worker.HTTPAddr = flags.Addr
	}
	log := logger.New("zapshift-worker", cfg.Env, cfg.Log.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := workerHTTPOpts{
		httpAddr:    cfg.Worker.HTTPAddr,
		swaggerPath: os.Getenv("workerSwaggerPath"),
	}
	if err := RunWorker(ctx, cfg, defaultWorkerFactories(), opts, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker stopped")
		cancel()
		os.Exit(1)
	}
}
