// Package store provides Shared Store Client implementations.
//
// Every implementation satisfies types.SharedStore and types.AtomicStore:
//
//   - [Redis] is backed by github.com/redis/go-redis/v9 and is the store to use
//     when several processes must share idempotency records, velocity counters
//     and the shared cache tier. Keys can be namespaced with [WithPrefix].
//   - [Memory] is backed by github.com/jellydator/ttlcache/v3 and only shares
//     state inside one process. It is meant for single-instance deployments
//     and tests.
//
// Failures are returned as SERVICE_UNAVAILABLE platform errors so callers can
// tell "store down" apart from "key missing".
package store
