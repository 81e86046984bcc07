package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/adapters/file"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/pkg/adapters/bolt"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/domain"
)

// lockTTL bounds how long a crashed process can hold the context lock.
const lockTTL = 5 * time.Second

// appOptions translates cfg into App options, opening the store backend.
func appOptions(cfg config.Config, logger *slog.Logger) ([]arbor.Option, error) {
	opts := []arbor.Option{
		arbor.WithLogger(logger),
		arbor.WithComponentsDir(cfg.Components),
		arbor.WithEvaluator(cfg.Evaluator),
		arbor.WithOutlet(cfg.Outlet),
		arbor.WithBarrierTimeout(cfg.Barrier.Timeout),
		arbor.WithTransitionDelay(cfg.Transition.Delay),
		arbor.WithStoreKey(cfg.Store.Key),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, arbor.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Store.EncryptionKey != "" {
		opts = append(opts, arbor.WithEncryptionKey([]byte(cfg.Store.EncryptionKey)))
	}
	if len(cfg.Store.Mask) > 0 {
		opts = append(opts, arbor.WithMaskedKeys(cfg.Store.Mask...))
	}
	storeOpts, err := storeOptions(cfg.Store)
	if err != nil {
		return nil, err
	}
	return append(opts, storeOpts...), nil
}

func storeOptions(cfg config.Store) ([]arbor.Option, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return nil, nil
	case config.BackendFile:
		return []arbor.Option{arbor.WithBlobStore(file.New(cfg.Path))}, nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		store, err := bolt.Open(filepath.Join(cfg.Path, "arbor.db"))
		if err != nil {
			return nil, err
		}
		return []arbor.Option{arbor.WithBlobStore(store)}, nil
	case config.BackendRedis:
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix), redis.WithTTL(cfg.Redis.TTL))
		locker := redis.NewLocker(store.Client(), cfg.Redis.Prefix)
		return []arbor.Option{
			arbor.WithBlobStore(store),
			arbor.WithLocker(locker, lockTTL),
		}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// openApp builds an App from cfg, merges initial into its context and opens
// the configured document.
func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger, initial domain.Context, extra ...arbor.Option) (*arbor.App, error) {
	opts, err := appOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	app, err := arbor.New(append(opts, extra...)...)
	if err != nil {
		return nil, err
	}
	if len(initial) > 0 {
		if err := app.SetContext(ctx, initial); err != nil {
			closeQuietly(app)
			return nil, err
		}
	}
	if err := app.Open(ctx, cfg.Document); err != nil {
		closeQuietly(app)
		return nil, err
	}
	return app, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
