// This file defines the refresh-lock map: the per-cache record of which keys
// are being recomputed right now.
// The goal is: "one computation per key per cache instance, however many callers miss at once"

package refresh

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/krisalay/coordcache/types"
)

// Func computes the value for a key. It receives a context that is not
// cancelled when the caller that started the flight goes away.
type Func func(ctx context.Context) (any, error)

/*
Group is the refresh-lock map of one cache instance.

A lock exists for a key from the moment the first caller misses until its
computation settles, successfully or not. Callers that arrive while it exists
wait for the same result instead of starting their own computation. A failed
computation is never remembered: the next miss starts a fresh flight.

The zero value is ready to use. A Group must not be copied or shared between
cache instances unless that pooling is intended.
*/
type Group struct {
	sf       singleflight.Group
	inflight atomic.Int64
}

/*
Do runs fn for key unless a flight for key is already running, in which case
it waits for that flight's result.

ctx bounds only this caller's wait: if it ends first, Do returns ctx.Err() and
the flight keeps running for the others. The computation itself runs with
context.WithoutCancel(ctx) of whichever caller started it.

shared reports whether the result was delivered to more than one caller.
*/
func (g *Group) Do(ctx context.Context, key string, fn Func) (v any, shared bool, err error) {
	ch := g.sf.DoChan(key, g.wrap(ctx, fn))

	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Go starts a background flight for key and does not wait for it.
// If one is already running, nothing new starts.
func (g *Group) Go(ctx context.Context, key string, fn Func) {
	g.sf.DoChan(key, g.wrap(ctx, fn))
}

// InFlight returns the number of computations currently running.
func (g *Group) InFlight() int64 {
	return g.inflight.Load()
}

func (g *Group) wrap(ctx context.Context, fn Func) func() (any, error) {
	detached := context.WithoutCancel(ctx)
	return func() (any, error) {
		g.inflight.Add(1)
		defer g.inflight.Add(-1)
		return fn(detached)
	}
}

/*
ShouldRefresh reports whether a local hit is close enough to its deadline to
start a refresh-ahead. Entries without a TTL and thresholds <= 0 never refresh.
*/
func ShouldRefresh(ent types.CacheEntry, threshold time.Duration, now time.Time) bool {
	if threshold <= 0 || ent.ExpireAt.IsZero() {
		return false
	}
	return ent.Remaining(now) <= threshold
}
