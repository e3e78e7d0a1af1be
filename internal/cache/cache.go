// Package cache memoizes decoded configuration between pipeline runs.
//
// Entries live for a long safety-net TTL; correctness comes from explicit
// invalidation. Every key handed out is recorded in an InvalidationRegistry
// and a configuration change drains the registry and deletes those keys.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wpx-extend/internal/metrics"
)

// DefaultTTL is one year.
const DefaultTTL = 365 * 24 * time.Hour

// Backend stores encoded entries. Implementations need not support
// enumeration.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	Delete(ctx context.Context, keys ...string) error
}

// Purger is implemented by backends shared between processes. Flush purges
// them entirely since keys recorded elsewhere are not in the local registry.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// Cache fronts a Backend with key recording and optional bypass.
type Cache struct {
	backend   Backend
	registry  *InvalidationRegistry
	ttl       time.Duration
	multisite bool
	bypass    bool
	now       func() time.Time
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithMultisite makes Definitions views bypass the cache.
func WithMultisite(on bool) Option {
	return func(c *Cache) { c.multisite = on }
}

// WithRegistry shares an existing invalidation registry.
func WithRegistry(r *InvalidationRegistry) Option {
	return func(c *Cache) { c.registry = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		ttl:     DefaultTTL,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewInvalidationRegistry()
	}
	return c
}

// Registry returns the invalidation registry shared by c and its views.
func (c *Cache) Registry() *InvalidationRegistry { return c.registry }

// Multisite reports whether definition lookups bypass the cache.
func (c *Cache) Multisite() bool { return c.multisite }

// Definitions returns a view for configuration-defining lookups. Under
// multisite the view always recomputes and never stores.
func (c *Cache) Definitions() *Cache {
	view := *c
	view.bypass = c.multisite
	return &view
}

// GetOrCompute returns the cached value for key or stores the result of
// compute. The key is recorded for invalidation on every call. Backend
// failures degrade to a recompute; compute errors are returned and not
// cached.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, compute func(context.Context) (T, error)) (T, error) {
	if c.bypass {
		c.metrics.RecordCache(metrics.ResultBypass)
		return compute(ctx)
	}

	c.registry.Record(key)
	c.metrics.SetTrackedKeys(c.registry.Len())

	if raw, ok, err := c.backend.Get(ctx, key); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			c.metrics.RecordCache(metrics.ResultHit)
			return v, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	c.metrics.RecordCache(metrics.ResultMiss)
	v, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return v, nil
	}
	if err := c.backend.Set(ctx, key, raw, c.now().Add(c.ttl)); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return v, nil
}

// InvalidateAll deletes keys from the backend.
func (c *Cache) InvalidateAll(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate %d keys: %w", len(keys), err)
	}
	c.metrics.RecordInvalidation(len(keys))
	c.log.Debug().Int("keys", len(keys)).Msg("cache invalidated")
	return nil
}

// Flush drains the registry and invalidates every recorded key. It returns
// the number of keys removed.
func (c *Cache) Flush(ctx context.Context) (int, error) {
	keys := c.registry.DrainAndClear()
	c.metrics.SetTrackedKeys(0)
	if err := c.InvalidateAll(ctx, keys); err != nil {
		// Keep the keys so a later flush can retry them.
		for _, k := range keys {
			c.registry.Record(k)
		}
		return 0, err
	}
	if p, ok := c.backend.(Purger); ok {
		n, err := p.Purge(ctx)
		if err != nil {
			return len(keys), err
		}
		if n > len(keys) {
			return n, nil
		}
	}
	return len(keys), nil
}
