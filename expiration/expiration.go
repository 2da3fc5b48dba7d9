// This file defines how local-tier entries expire over time.

package expiration

import (
	"time"

	"github.com/krisalay/coordcache/types"
)

/*
Strategy decides when a local entry stops being servable. Every method takes
the current time from the cache's injected clock, never from time.Now, so TTL
behaviour is testable.
*/
type Strategy interface {

	// IsExpired reports whether ent must not be returned as a hit at now.
	IsExpired(ent *types.CacheEntry, now time.Time) bool

	// OnAccess is called after a successful local read.
	OnAccess(ent *types.CacheEntry, now time.Time)

	// OnWrite stamps a freshly written entry with its deadline.
	OnWrite(ent *types.CacheEntry, ttl time.Duration, now time.Time)
}

/*
Absolute expires an entry ttl after it was written, regardless of reads.
It is the default: the local copy mirrors the shared tier and may be stale by
at most its own TTL.
*/
type Absolute struct{}

func (Absolute) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return ent.Expired(now)
}

func (Absolute) OnAccess(ent *types.CacheEntry, now time.Time) {
	ent.LastAccessedAt = now
}

func (Absolute) OnWrite(ent *types.CacheEntry, ttl time.Duration, now time.Time) {
	ent.CreatedAt = now
	ent.LastAccessedAt = now
	ent.ExpireAt = time.Time{}
	if ttl > 0 {
		ent.ExpireAt = now.Add(ttl)
	}
}
