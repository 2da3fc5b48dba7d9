/*
Package idempotency deduplicates retried mutating requests by a client
supplied Idempotency-Key.

Per key, the Coordinator walks this state machine against the shared store:

	no key                           -> passthrough, no deduplication
	malformed key                    -> rejected before any store access
	replay record present            -> replayed, handler not invoked
	no replay, no processing lock    -> lock taken, handler runs
	handler succeeds                 -> replay record written, lock deleted
	handler fails                    -> lock deleted, nothing recorded
	lock held by a concurrent caller -> wait once, re-check replay,
	                                    then replay or process anyway

Records live at "idempotency:{key}" (replay, 24h by default) and
"idempotency:lock:{key}" (processing lock, 60s by default).

This is best-effort deduplication, not exactly-once execution. When the store
supports set-if-absent the lock is taken atomically; otherwise it is
get-then-set and two requests arriving together can both run. A request that
is still contended after the wait also runs. Callers whose handlers must never
run twice need a real lock service.

Middleware adapts the Coordinator to gin and marks replays with the
Idempotency-Replay: true response header.
*/
package idempotency
