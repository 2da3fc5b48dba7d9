package types

import (
	"context"
	"time"
)

// Policy controls how long a computed value lives and when it is refreshed early.
type Policy struct {
	// TTL applies to both tiers. <= 0 means the cache's default TTL.
	TTL time.Duration

	// RefreshThreshold > 0 enables refresh-ahead: a local hit with at most this
	// much TTL left triggers one background recompute.
	RefreshThreshold time.Duration
}

// ComputeFunc produces the value for a missing key.
type ComputeFunc[V any] func(ctx context.Context) (V, error)

// KeyedComputeFunc produces the value for one of many keys being warmed.
type KeyedComputeFunc[V any] func(ctx context.Context, key string) (V, error)

// WarmReport summarises a warm batch. Failed holds one error per key that could not be loaded.
type WarmReport struct {
	Warmed int
	Failed map[string]error
}
