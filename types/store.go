package types

import (
	"context"
	"time"
)

/*
SharedStore is the contract between the coordination layer and the external
key/value store that every process shares.

Values are opaque bytes. Get reports a miss as (nil, false, nil); any other
failure is returned as an error and must not be swallowed by the store itself.
No retries happen at this layer, retry policy belongs to callers.

A ttl <= 0 stores the value without expiration.
*/
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

/*
AtomicStore is implemented by stores that can perform a conditional write.

SetIfAbsent writes value only when key does not exist and reports whether the
write happened. Callers that need "set-if-absent" semantics (processing locks)
detect this interface and fall back to get-then-set when it is missing.
*/
type AtomicStore interface {
	SharedStore
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Clock is the time source used for every TTL decision.
// github.com/andres-erbsen/clock satisfies it, as does RealClock.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }
