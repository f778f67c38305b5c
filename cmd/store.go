package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrascope/terrascope/internal/api"
	"github.com/terrascope/terrascope/internal/cache"
	"github.com/terrascope/terrascope/internal/config"
	"github.com/terrascope/terrascope/internal/db"
	"github.com/terrascope/terrascope/internal/store"
)

// initStore opens the configured backend, migrates it and wraps it with
// metrics.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch c.Store.Driver {
	case "sqlite":
		s, err = store.NewSQLite(c.Store.SQLitePath)
	case "postgres":
		s, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &db.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	case "mongo":
		s, err = store.NewMongo(ctx, c.Store.Mongo.URI, c.Store.Mongo.Database, c.Store.Mongo.Collection)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "open %s store", c.Store.Driver)
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "migrate %s store", c.Store.Driver)
	}

	zap.L().Info("store ready", zap.String("driver", c.Store.Driver))
	return store.Instrumented(s, c.Store.Driver), nil
}

// initCache builds the analytics cache. The returned closer is never nil.
func initCache(c config.CacheConfig) (cache.Cache, func() error) {
	noop := func() error { return nil }
	switch c.Driver {
	case "redis":
		if rc := cache.NewRedis(c.RedisAddr, c.RedisPassword, c.RedisDB, c.Prefix); rc != nil {
			return rc, rc.Close
		}
		zap.L().Warn("redis cache requested without an address, caching disabled")
		return cache.Nop{}, noop
	case "none":
		return cache.Nop{}, noop
	default:
		return cache.NewMemory(c.MaxEntries, c.TTL()), noop
	}
}

// invalidateAnalytics drops the city analytics a running server caches in a
// shared (redis) cache after this process wrote to the store. Process-local
// caches are left alone.
func invalidateAnalytics(ctx context.Context, c config.CacheConfig) {
	if c.Driver != "redis" {
		return
	}
	ac, closeCache := initCache(c)
	defer closeCache() //nolint:errcheck
	api.InvalidateAnalytics(ctx, ac)
}
