package types

import "time"

// CacheEntry is one value held by the local tier.
// Timestamps are mutated under the tier lock only.
type CacheEntry struct {
	Key            string
	Value          any
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpireAt       time.Time // zero => no TTL
}

// Expired reports whether the entry is past its deadline at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpireAt.IsZero() && !now.Before(e.ExpireAt)
}

// Remaining returns the time left before the entry expires.
// Entries without a TTL report -1.
func (e *CacheEntry) Remaining(now time.Time) time.Duration {
	if e.ExpireAt.IsZero() {
		return -1
	}
	if d := e.ExpireAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
