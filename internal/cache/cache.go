// Package cache memoizes leaderboard snapshots per game for a bounded time window.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/victornm/raboard/internal/domain"
	"github.com/victornm/raboard/internal/telemetry"
)

const DefaultTTL = 5 * time.Minute

// Store keeps one snapshot per key until it expires.
type Store interface {
	// Get returns the snapshot of key if it exists and has not expired.
	Get(ctx context.Context, key string) (*domain.Snapshot, bool, error)
	// Put stores or overwrites the snapshot of key, expiring after ttl.
	Put(ctx context.Context, key string, s *domain.Snapshot, ttl time.Duration) error
}

type Config struct {
	Store   Store
	TTL     time.Duration
	Metrics *telemetry.Metrics
}

// Cache coalesces concurrent misses of the same key: the first miss computes the snapshot and
// the other callers wait for that computation instead of starting their own.
type Cache struct {
	store   Store
	ttl     time.Duration
	metrics *telemetry.Metrics
	group   singleflight.Group
}

func New(c Config) *Cache {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		store:   c.Store,
		ttl:     ttl,
		metrics: c.Metrics,
	}
}

// ComputeFunc builds a fresh snapshot. The snapshot is stored only when err is nil.
type ComputeFunc func(ctx context.Context) (*domain.Snapshot, error)

// GetOrCompute returns the snapshot of key, from the store if still valid, otherwise by calling compute.
// compute runs on a context detached from the cancellation of ctx, since other callers may be waiting
// for it; ctx only bounds how long this caller waits.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (*domain.Snapshot, error) {
	if s, ok := c.lookup(ctx, key); ok {
		c.metrics.CacheLookup(true)
		return s, nil
	}
	c.metrics.CacheLookup(false)

	ch := c.group.DoChan(key, func() (any, error) {
		ctx := context.WithoutCancel(ctx)

		// A flight for the same key may have stored a snapshot since the lookup above.
		if s, ok := c.lookup(ctx, key); ok {
			return s, nil
		}

		s, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		if err := c.store.Put(ctx, key, s, c.ttl); err != nil {
			slog.ErrorContext(ctx, "cache: store snapshot failed", "key", key, "error", err)
		}

		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for computation: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*domain.Snapshot), nil
	}
}

func (c *Cache) lookup(ctx context.Context, key string) (*domain.Snapshot, bool) {
	s, ok, err := c.store.Get(ctx, key)
	if err != nil {
		slog.ErrorContext(ctx, "cache: get snapshot failed", "key", key, "error", err)
		return nil, false
	}

	return s, ok
}
