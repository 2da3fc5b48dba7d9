// Package api holds the public contract of the two-tier cache.
package api

import (
	"context"

	"github.com/krisalay/coordcache/types"
)

/*
Cache is the public API of a two-tier cache holding values of type V.
Tiers, eviction, expiration, refresh locks and write policies stay behind it.
*/
type Cache[V any] interface {

	/*
		GetOrSet is cache-aside.

		BEHAVIOR:
		-------------------
		1. Local hit: return it (hit).
		2. Shared hit: copy into the local tier, return it (hit).
		3. Miss in both: record a miss, run fn, write both tiers, return the value.

		Concurrent callers missing the same key may each run fn.
		Shared tier failures are logged and treated as a miss. fn errors are returned
		and never cached.
	*/
	GetOrSet(ctx context.Context, key string, fn types.ComputeFunc[V], policy types.Policy) (V, error)

	/*
		GetOrSetWithLock behaves like GetOrSet, except that concurrent misses on the
		same key in this instance wait for one running fn and share its result.
		Separate processes may still compute the same key.
	*/
	GetOrSetWithLock(ctx context.Context, key string, fn types.ComputeFunc[V], policy types.Policy) (V, error)

	// Warm runs GetOrSet for every key concurrently and returns once all settle.
	// Per-key failures are logged and reported, never aggregated into one error.
	Warm(ctx context.Context, keys []string, fn types.KeyedComputeFunc[V], policy types.Policy) types.WarmReport

	/*
		InvalidatePattern removes local entries whose key matches pattern, where '*'
		matches any run of characters and everything else is literal. It returns the
		number removed.

		IMPORTANT:
		----------
		The shared tier is NOT scanned. Matching keys stay there until their TTL
		runs out or they are deleted by name, and may repopulate the local tier.
	*/
	InvalidatePattern(pattern string) (int, error)

	// Get reads a value without computing it.
	Get(ctx context.Context, key string) (V, bool)

	// Set writes a value to both tiers.
	Set(ctx context.Context, key string, value V, policy types.Policy) error

	// Delete removes key from both tiers.
	Delete(ctx context.Context, key string) error

	// Clear empties both tiers.
	Clear(ctx context.Context) error

	// Metrics returns the running tally.
	Metrics() types.MetricsSnapshot

	// ResetMetrics zeroes the running tally.
	ResetMetrics()

	// Close flushes pending shared-tier writes.
	Close()
}
