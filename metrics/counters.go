// Package metrics holds types.Metrics implementations: the in-process tally
// behind the cache's metrics snapshot, a Prometheus exporter, and a fan-out.
package metrics

import (
	"sync/atomic"

	"github.com/krisalay/coordcache/types"
)

// Counters is a lock-free running tally of cache events.
type Counters struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	sets        atomic.Uint64
	deletes     atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

var _ types.Metrics = (*Counters)(nil)

func (c *Counters) Hit()      { c.hits.Add(1) }
func (c *Counters) Miss()     { c.misses.Add(1) }
func (c *Counters) Set()      { c.sets.Add(1) }
func (c *Counters) Delete()   { c.deletes.Add(1) }
func (c *Counters) Eviction() { c.evictions.Add(1) }
func (c *Counters) Expire()   { c.expirations.Add(1) }

// Snapshot copies the tally. HitRate is hits/(hits+misses), 0 before any lookup.
func (c *Counters) Snapshot() types.MetricsSnapshot {
	s := types.MetricsSnapshot{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Deletes:     c.deletes.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Reset zeroes every counter.
func (c *Counters) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
	c.deletes.Store(0)
	c.evictions.Store(0)
	c.expirations.Store(0)
}

// Multi forwards every event to each sink in order.
type Multi []types.Metrics

func (m Multi) Hit() {
	for _, s := range m {
		s.Hit()
	}
}

func (m Multi) Miss() {
	for _, s := range m {
		s.Miss()
	}
}

func (m Multi) Set() {
	for _, s := range m {
		s.Set()
	}
}

func (m Multi) Delete() {
	for _, s := range m {
		s.Delete()
	}
}

func (m Multi) Eviction() {
	for _, s := range m {
		s.Eviction()
	}
}

func (m Multi) Expire() {
	for _, s := range m {
		s.Expire()
	}
}
