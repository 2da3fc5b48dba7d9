package types

// This file defines how the coordination layer reports what it is doing.

/*
Metrics is an event sink. The two-tier cache calls these methods as things happen;
implementations decide whether to count, export, or ignore them.
*/
type Metrics interface {

	// Hit is called when a value is served from the local or shared tier.
	Hit()

	// Miss is called once per miss event, before the compute function runs.
	Miss()

	// Set is called when a computed or explicit value is written to the cache.
	Set()

	// Delete is called when a key is explicitly removed.
	Delete()

	// Eviction is called when the local tier drops a key to stay within capacity.
	Eviction()

	// Expire is called when an expired local entry is found and removed.
	Expire()
}

// NoopMetrics ignores every event so callers never need nil checks.
type NoopMetrics struct{}

func (NoopMetrics) Hit()      {}
func (NoopMetrics) Miss()     {}
func (NoopMetrics) Set()      {}
func (NoopMetrics) Delete()   {}
func (NoopMetrics) Eviction() {}
func (NoopMetrics) Expire()   {}

// MetricsSnapshot is a point-in-time copy of the running tally.
type MetricsSnapshot struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Sets        uint64  `json:"sets"`
	Deletes     uint64  `json:"deletes"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
	HitRate     float64 `json:"hitRate"`
}
