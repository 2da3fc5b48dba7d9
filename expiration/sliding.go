package expiration

import (
	"time"

	"github.com/krisalay/coordcache/types"
)

/*
Sliding pushes the deadline forward on every read ("expire after access").
Idle entries expire; hot entries stay as long as they are read within TTL.

TTL is the window applied on access. A write uses the per-call ttl when it is
positive and falls back to TTL otherwise.
*/
type Sliding struct {
	TTL time.Duration
}

func (s *Sliding) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return ent.Expired(now)
}

func (s *Sliding) OnAccess(ent *types.CacheEntry, now time.Time) {
	ent.LastAccessedAt = now
	if s.TTL > 0 {
		ent.ExpireAt = now.Add(s.TTL)
	}
}

func (s *Sliding) OnWrite(ent *types.CacheEntry, ttl time.Duration, now time.Time) {
	ent.CreatedAt = now
	ent.LastAccessedAt = now
	if ttl <= 0 {
		ttl = s.TTL
	}
	ent.ExpireAt = time.Time{}
	if ttl > 0 {
		ent.ExpireAt = now.Add(ttl)
	}
}
