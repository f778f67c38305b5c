// Package cache stores rendered JSON responses for expensive endpoints.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-payload cache with per-entry TTL. Implementations never
// fail a request: backend errors are reported as misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// StatsReporter is implemented by caches that track their own statistics.
type StatsReporter interface {
	Name() string
	Stats() Stats
}

// Nop is a Cache that stores nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (Nop) Set(context.Context, string, []byte, time.Duration) {}

func (Nop) Delete(context.Context, string) {}
