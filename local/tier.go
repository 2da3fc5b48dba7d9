package local

import (
	"sync"
	"time"

	"github.com/krisalay/coordcache/eviction"
	"github.com/krisalay/coordcache/expiration"
	"github.com/krisalay/coordcache/types"
)

/*
Tier is the bounded in-process half of the two-tier cache.

One map, one eviction policy, one mutex. The cache is deliberately not
sharded: eviction order (FIFO by default) is global across all keys, so
"the oldest inserted entry is evicted first" holds for the whole tier and
not just per shard.
*/
type Tier struct {
	mu       sync.Mutex
	entries  map[string]*types.CacheEntry
	eviction eviction.Policy
	expiry   expiration.Strategy
	capacity int
}

// Status describes the outcome of a lookup.
type Status int

const (
	Miss Status = iota
	Hit
	// Expired means the key was present but past its deadline; it has been removed.
	Expired
)

// NewTier creates a tier holding at most capacity entries.
func NewTier(capacity int, ev eviction.Policy, exp expiration.Strategy) *Tier {
	if exp == nil {
		exp = expiration.Absolute{}
	}
	return &Tier{
		entries:  make(map[string]*types.CacheEntry),
		eviction: ev,
		expiry:   exp,
		capacity: capacity,
	}
}

// Get returns a copy of the entry for key. Expired entries are removed
// under the same lock so they can never be served.
func (t *Tier) Get(key string, now time.Time) (types.CacheEntry, Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ent, ok := t.entries[key]
	if !ok {
		return types.CacheEntry{}, Miss
	}
	if t.expiry.IsExpired(ent, now) {
		t.removeLocked(key)
		return types.CacheEntry{}, Expired
	}

	t.expiry.OnAccess(ent, now)
	t.eviction.OnGet(key)
	return *ent, Hit
}

// Put stores value under key and returns the keys evicted to make room.
func (t *Tier) Put(key string, value any, ttl time.Duration, now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []string
	if _, exists := t.entries[key]; !exists {
		for len(t.entries) >= t.capacity {
			victim := t.eviction.Evict()
			if victim == "" {
				break
			}
			delete(t.entries, victim)
			evicted = append(evicted, victim)
		}
	}

	ent := &types.CacheEntry{Key: key, Value: value}
	t.expiry.OnWrite(ent, ttl, now)
	t.entries[key] = ent
	t.eviction.OnPut(key)

	return evicted
}

// Delete removes key and reports whether it was present.
func (t *Tier) Delete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[key]; !ok {
		return false
	}
	t.removeLocked(key)
	return true
}

// DeleteFunc removes every key for which match returns true.
func (t *Tier) DeleteFunc(match func(key string) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for key := range t.entries {
		if match(key) {
			t.removeLocked(key)
			n++
		}
	}
	return n
}

// Clear empties the tier and returns how many entries were dropped.
func (t *Tier) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.entries)
	t.entries = make(map[string]*types.CacheEntry)
	t.eviction.Reset()
	return n
}

// Len returns the number of stored entries, expired ones included until touched.
func (t *Tier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Capacity returns the configured entry bound.
func (t *Tier) Capacity() int {
	return t.capacity
}

func (t *Tier) removeLocked(key string) {
	delete(t.entries, key)
	t.eviction.Remove(key)
}
