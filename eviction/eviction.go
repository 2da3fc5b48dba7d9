package eviction

import "fmt"

/*
This file defines how the local tier decides what to remove when it runs out of space.
*/

/*
Policy is the interface that every eviction strategy follows.

The local tier does NOT care how eviction works internally. It only reports
events and asks for a victim when it is full. Policies are not safe for
concurrent use, the tier calls them under its own lock.
*/
type Policy interface {

	// OnGet is called whenever a key is read.
	// FIFO ignores it; LRU moves the key to the front.
	OnGet(string)

	// OnPut is called whenever a key is written. Re-putting a tracked key
	// must not change its FIFO position.
	OnPut(string)

	// Remove drops a key that was deleted, invalidated or expired.
	Remove(string)

	// Evict picks the victim and stops tracking it. Empty string means nothing to evict.
	Evict() string

	// Reset forgets every tracked key.
	Reset()
}

// PolicyType is a simple identifier for supported eviction strategies.
type PolicyType string

const (
	// FIFO evicts the oldest inserted key regardless of access. This is the default.
	FIFO PolicyType = "FIFO"

	// LRU evicts the key that has not been accessed for the longest time.
	LRU PolicyType = "LRU"
)

// NewEvictionPolicy creates the policy for t.
func NewEvictionPolicy(t PolicyType) (Policy, error) {
	switch t {
	case FIFO, "":
		return newFIFO(), nil
	case LRU:
		return newLRU(), nil
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", t)
	}
}
