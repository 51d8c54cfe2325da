// Package driver opens the store selected by configuration.
package driver

import (
	"context"
	"time"

	"github.com/BearBump/zapshift/config"
	"github.com/BearBump/zapshift/internal/storage"
	"github.com/BearBump/zapshift/internal/storage/memstore"
	"github.com/BearBump/zapshift/internal/storage/mongostore"
	"github.com/BearBump/zapshift/internal/storage/pgstore"
	"github.com/pkg/errors"
)

// Open connects to the store named by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres", "":
		st, err := pgstore.New(cfg.Database.ConnString())
		if err != nil {
			return nil, err
		}
		return st, nil
	case "mongo":
		st, err := mongostore.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		return memstore.New(), nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// OpenWithRetry keeps trying until wait elapses; databases in compose setups
// often come up after the service.
func OpenWithRetry(ctx context.Context, cfg *config.Config, wait time.Duration) (storage.Store, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for {
		st, err := Open(ctx, cfg)
		if err == nil {
			return st, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, errors.Wrapf(lastErr, "%s storage not ready after %s", cfg.Storage.Driver, wait)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
