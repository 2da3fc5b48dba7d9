package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/krisalay/coordcache/api"
	"github.com/krisalay/coordcache/codec"
	"github.com/krisalay/coordcache/engine"
	evict "github.com/krisalay/coordcache/eviction"
	"github.com/krisalay/coordcache/local"
	"github.com/krisalay/coordcache/metrics"
	"github.com/krisalay/coordcache/refresh"
	"github.com/krisalay/coordcache/types"
	"github.com/krisalay/coordcache/writepolicy"
)

const (
	DefaultCapacity        = 10000
	DefaultTTL             = 5 * time.Minute
	DefaultWarmConcurrency = 16
)

// Options sizes a TwoTierCache. Zero fields take the defaults above.
type Options struct {
	Capacity        int
	Eviction        evict.PolicyType
	DefaultTTL      time.Duration
	WarmConcurrency int
}

/*
TwoTierCache is the main cache implementation.
This struct is the orchestrator that connects:
- the bounded local tier
- the shared tier
- the refresh-lock map
- the engine (clock, expiration, write policy, metrics, logging)
*/
type TwoTierCache[V any] struct {
	// local is the bounded in-process tier. Values are stored decoded.
	local *local.Tier

	// shared is read directly; writes go through the engine's write policy.
	shared types.SharedStore

	codec codec.Codec[V]

	// engine contains the "rules" of the cache.
	engine *engine.CacheEngine

	// tally backs Metrics and ResetMetrics. engine.Metrics fans out to it.
	tally *metrics.Counters

	// flights is this instance's refresh-lock map.
	flights refresh.Group

	defaultTTL      time.Duration
	warmConcurrency int
}

var _ api.Cache[string] = (*TwoTierCache[string])(nil)

// New builds a cache over shared. eng may be nil for defaults; its Metrics sink,
// if any, keeps receiving every event alongside the cache's own tally.
// An engine belongs to exactly one cache.
func New[V any](shared types.SharedStore, eng *engine.CacheEngine, opts Options) (*TwoTierCache[V], error) {
	return NewWithCodec[V](shared, eng, codec.Msgpack[V]{}, opts)
}

// NewWithCodec is New with a custom shared-tier encoding.
func NewWithCodec[V any](shared types.SharedStore, eng *engine.CacheEngine, cd codec.Codec[V], opts Options) (*TwoTierCache[V], error) {
	if shared == nil {
		return nil, errors.New("cache: shared store is required")
	}
	if opts.Capacity < 0 {
		return nil, errors.New("cache: capacity must not be negative")
	}
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.WarmConcurrency <= 0 {
		opts.WarmConcurrency = DefaultWarmConcurrency
	}
	if eng == nil {
		eng = engine.NewCacheEngine()
	}

	policy, err := evict.NewEvictionPolicy(opts.Eviction)
	if err != nil {
		return nil, err
	}

	if eng.WritePolicy == nil {
		eng.WritePolicy = writepolicy.NewWriteThroughPolicy(shared, eng.Logger)
	}

	tally := &metrics.Counters{}
	if _, noop := eng.Metrics.(types.NoopMetrics); noop {
		eng.Metrics = tally
	} else {
		eng.Metrics = metrics.Multi{tally, eng.Metrics}
	}

	return &TwoTierCache[V]{
		local:           local.NewTier(opts.Capacity, policy, eng.Expiration),
		shared:          shared,
		codec:           cd,
		engine:          eng,
		tally:           tally,
		defaultTTL:      opts.DefaultTTL,
		warmConcurrency: opts.WarmConcurrency,
	}, nil
}

/*
GetOrSet is cache-aside over both tiers. Concurrent misses may each run fn.
*/
func (c *TwoTierCache[V]) GetOrSet(ctx context.Context, key string, fn types.ComputeFunc[V], policy types.Policy) (V, error) {
	if v, ok := c.lookupLocal(ctx, key, fn, policy); ok {
		return v, nil
	}
	if v, ok := c.lookupShared(ctx, key, policy); ok {
		return v, nil
	}

	c.engine.Metrics.Miss()
	v, err := fn(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.store(ctx, key, v, policy)
	return v, nil
}

/*
GetOrSetWithLock is GetOrSet with the refresh lock held for the duration of fn.

Callers that miss while a computation for key is running wait for it and get
the same value. The miss is recorded once per computation. If ctx ends while
waiting, ctx.Err() is returned and the computation continues for the others.
*/
func (c *TwoTierCache[V]) GetOrSetWithLock(ctx context.Context, key string, fn types.ComputeFunc[V], policy types.Policy) (V, error) {
	var zero V

	if v, ok := c.lookupLocal(ctx, key, fn, policy); ok {
		return v, nil
	}
	if v, ok := c.lookupShared(ctx, key, policy); ok {
		return v, nil
	}

	res, _, err := c.flights.Do(ctx, key, func(fctx context.Context) (any, error) {
		// A flight that just settled may already have filled the local tier.
		if ent, st := c.local.Get(key, c.engine.Now()); st == local.Hit {
			return ent.Value, nil
		}

		c.engine.Metrics.Miss()
		v, err := fn(fctx)
		if err != nil {
			return nil, err
		}
		c.store(fctx, key, v, policy)
		return v, nil
	})
	if err != nil {
		return zero, err
	}

	v, _ := res.(V)
	return v, nil
}

/*
Warm loads keys concurrently through GetOrSet, at most WarmConcurrency at a
time, and waits for all of them. Failures are logged and collected per key.
*/
func (c *TwoTierCache[V]) Warm(ctx context.Context, keys []string, fn types.KeyedComputeFunc[V], policy types.Policy) types.WarmReport {
	var (
		mu     sync.Mutex
		report = types.WarmReport{Failed: map[string]error{}}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.warmConcurrency)

	for _, key := range keys {
		g.Go(func() error {
			_, err := c.GetOrSet(gctx, key, func(ctx context.Context) (V, error) {
				return fn(ctx, key)
			}, policy)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.engine.Logger.Warn("cache warm failed", "key", key, "error", err)
				report.Failed[key] = err
				return nil
			}
			report.Warmed++
			return nil
		})
	}
	_ = g.Wait()

	return report
}

/*
InvalidatePattern removes every local entry whose key matches pattern.
'*' is the only wildcard; all other characters match literally.
The shared tier is left untouched.
*/
func (c *TwoTierCache[V]) InvalidatePattern(pattern string) (int, error) {
	m, err := compilePattern(pattern)
	if err != nil {
		return 0, err
	}
	return c.local.DeleteFunc(m.Match), nil
}

func compilePattern(pattern string) (glob.Glob, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = glob.QuoteMeta(p)
	}
	return glob.Compile(strings.Join(parts, "*"))
}

// Get reads key from the local tier, then the shared tier, without computing.
// A shared hit is copied into the local tier with the default TTL.
func (c *TwoTierCache[V]) Get(ctx context.Context, key string) (V, bool) {
	if v, ok := c.lookupLocal(ctx, key, nil, types.Policy{}); ok {
		return v, true
	}
	if v, ok := c.lookupShared(ctx, key, types.Policy{}); ok {
		return v, true
	}
	c.engine.Metrics.Miss()
	var zero V
	return zero, false
}

// Set writes value to both tiers.
func (c *TwoTierCache[V]) Set(ctx context.Context, key string, value V, policy types.Policy) error {
	c.store(ctx, key, value, policy)
	return nil
}

// Delete removes key from both tiers. The local copy is gone even when the
// shared delete fails; that failure is returned.
func (c *TwoTierCache[V]) Delete(ctx context.Context, key string) error {
	c.local.Delete(key)
	c.engine.Metrics.Delete()
	return c.shared.Delete(ctx, key)
}

// Clear empties the local tier and the shared store.
func (c *TwoTierCache[V]) Clear(ctx context.Context) error {
	c.local.Clear()
	return c.shared.Clear(ctx)
}

// Len returns the number of local entries.
func (c *TwoTierCache[V]) Len() int {
	return c.local.Len()
}

// Metrics returns a snapshot of this cache's counters.
func (c *TwoTierCache[V]) Metrics() types.MetricsSnapshot {
	return c.tally.Snapshot()
}

// ResetMetrics zeroes the counters. External sinks are not touched.
func (c *TwoTierCache[V]) ResetMetrics() {
	c.tally.Reset()
}

// Close flushes pending shared-tier writes. The shared store itself is owned by the caller.
func (c *TwoTierCache[V]) Close() {
	c.engine.Close()
}

func (c *TwoTierCache[V]) ttl(policy types.Policy) time.Duration {
	if policy.TTL > 0 {
		return policy.TTL
	}
	return c.defaultTTL
}

/*
lookupLocal serves key from the local tier. An expired entry is removed and
counted. When fn is set and the entry is within the refresh threshold, one
background recompute starts through the refresh-lock map.
*/
func (c *TwoTierCache[V]) lookupLocal(ctx context.Context, key string, fn types.ComputeFunc[V], policy types.Policy) (V, bool) {
	var zero V
	now := c.engine.Now()

	ent, st := c.local.Get(key, now)
	switch st {
	case local.Expired:
		c.engine.Metrics.Expire()
		return zero, false
	case local.Miss:
		return zero, false
	}

	c.engine.Metrics.Hit()
	if fn != nil && refresh.ShouldRefresh(ent, policy.RefreshThreshold, now) {
		c.refreshAhead(ctx, key, fn, policy)
	}

	v, _ := ent.Value.(V)
	return v, true
}

func (c *TwoTierCache[V]) refreshAhead(ctx context.Context, key string, fn types.ComputeFunc[V], policy types.Policy) {
	c.flights.Go(ctx, key, func(fctx context.Context) (any, error) {
		v, err := fn(fctx)
		if err != nil {
			c.engine.Logger.Warn("cache refresh-ahead failed", "key", key, "error", err)
			return nil, err
		}
		c.store(fctx, key, v, policy)
		return v, nil
	})
}

// lookupShared reads and decodes key from the shared tier. Any failure is
// logged and reported as a miss so the caller falls back to computing.
func (c *TwoTierCache[V]) lookupShared(ctx context.Context, key string, policy types.Policy) (V, bool) {
	var zero V

	data, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		c.engine.Logger.Warn("shared tier read failed, treating as miss", "key", key, "error", err)
		return zero, false
	}
	if !ok {
		return zero, false
	}

	v, err := c.codec.Decode(data)
	if err != nil {
		c.engine.Logger.Warn("shared tier value undecodable, treating as miss", "key", key, "error", err)
		return zero, false
	}

	c.engine.Metrics.Hit()
	c.putLocal(key, v, c.ttl(policy))
	return v, true
}

// store writes v to the local tier and hands it to the write policy.
// Nothing here can fail the caller.
func (c *TwoTierCache[V]) store(ctx context.Context, key string, v V, policy types.Policy) {
	ttl := c.ttl(policy)
	c.putLocal(key, v, ttl)
	c.engine.Metrics.Set()

	data, err := c.codec.Encode(v)
	if err != nil {
		c.engine.Logger.Warn("cache value unencodable, kept local only", "key", key, "error", err)
		return
	}
	c.engine.Persist(ctx, key, data, ttl)
}

func (c *TwoTierCache[V]) putLocal(key string, v V, ttl time.Duration) {
	for range c.local.Put(key, v, ttl, c.engine.Now()) {
		c.engine.Metrics.Eviction()
	}
}
