package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/andres-erbsen/clock"

	"github.com/krisalay/coordcache/expiration"
	"github.com/krisalay/coordcache/types"
	"github.com/krisalay/coordcache/writepolicy"
)

/*
CacheEngine is the policy layer of a two-tier cache.
It is responsible for the "behavior" of the cache, NOT storage.

It decides:
- What time it is (every TTL decision goes through Clock)
- How local entries expire
- How computed values reach the shared tier
- Where events are counted and logged

It does NOT:
- Store data
- Decide eviction order
- Coordinate concurrent computations
*/
type CacheEngine struct {

	// Clock is the time source for every TTL decision. Tests swap in a mock.
	Clock types.Clock

	// Expiration controls when a local entry stops being servable.
	Expiration expiration.Strategy

	// WritePolicy decides how computed values are written to the shared tier.
	// If nil, the cache installs write-through over its shared store.
	WritePolicy writepolicy.WritePolicy

	// Metrics receives hit/miss/set/delete/eviction/expiration events.
	Metrics types.Metrics

	// Logger receives the failures the cache swallows.
	Logger *slog.Logger
}

// Option configures a CacheEngine.
type Option func(*CacheEngine)

// WithClock sets the time source for every TTL decision.
func WithClock(c types.Clock) Option { return func(e *CacheEngine) { e.Clock = c } }

// WithExpiration sets how local entries expire. Default: expiration.Absolute.
func WithExpiration(s expiration.Strategy) Option {
	return func(e *CacheEngine) { e.Expiration = s }
}

// WithWritePolicy sets how writes reach the shared tier.
func WithWritePolicy(p writepolicy.WritePolicy) Option {
	return func(e *CacheEngine) { e.WritePolicy = p }
}

// WithMetrics adds a metrics sink.
func WithMetrics(m types.Metrics) Option { return func(e *CacheEngine) { e.Metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *CacheEngine) { e.Logger = l } }

/*
NewCacheEngine creates a CacheEngine. Every field ends up non-nil except
WritePolicy, which the cache installs when it is nil.
*/
func NewCacheEngine(opts ...Option) *CacheEngine {
	e := &CacheEngine{}
	for _, opt := range opts {
		opt(e)
	}

	if e.Clock == nil {
		e.Clock = clock.New()
	}
	if e.Expiration == nil {
		e.Expiration = expiration.Absolute{}
	}
	if e.Metrics == nil {
		e.Metrics = types.NoopMetrics{}
	}
	if e.Logger == nil {
		e.Logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Now reads the engine clock.
func (e *CacheEngine) Now() time.Time {
	return e.Clock.Now()
}

// Persist hands encoded bytes to the write policy, if any.
func (e *CacheEngine) Persist(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if e.WritePolicy != nil {
		e.WritePolicy.OnWrite(ctx, key, data, ttl)
	}
}

// Close flushes the write policy.
func (e *CacheEngine) Close() {
	if e.WritePolicy != nil {
		e.WritePolicy.Close()
	}
}
