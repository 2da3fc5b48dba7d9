package idempotency

import (
	"context"
	"log/slog"
	"time"

	perrors "github.com/jmgilman/go/errors"

	"github.com/krisalay/coordcache/types"
)

// Handler performs the operation being deduplicated.
type Handler func(ctx context.Context) (Response, error)

// Outcome is the result of Execute. Replayed is true when Response came from
// the replay record and the handler was not invoked.
type Outcome struct {
	Response Response
	Replayed bool
}

/*
Coordinator deduplicates requests by idempotency key over a shared store.
It bypasses any local cache tier: every decision reads the shared store.
*/
type Coordinator struct {
	store  types.SharedStore
	atomic types.AtomicStore
	cfg    config
}

/*
NewCoordinator creates a Coordinator over store.

Default configuration:
  - 60s processing lock, 24h replay
  - 100ms wait on contention
  - atomic lock acquisition when store implements types.AtomicStore
*/
func NewCoordinator(store types.SharedStore, opts ...Option) *Coordinator {
	cfg := config{
		lockTTL:     DefaultLockTTL,
		replayTTL:   DefaultReplayTTL,
		wait:        DefaultWait,
		atomicLocks: true,
		clock:       types.RealClock{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	c := &Coordinator{store: store, cfg: cfg}
	if as, ok := store.(types.AtomicStore); ok && cfg.atomicLocks {
		c.atomic = as
	}
	return c
}

/*
Execute runs handler at most once per key, as far as the store allows.

An empty key runs handler directly. A malformed key returns an error wrapping
ErrInvalidKey without touching the store. A recorded key presented with a
different meta.Fingerprint returns an error wrapping ErrKeyReused. A handler error is returned
unchanged, after the processing lock has been released, and is never
recorded, so the same key can be retried. Store failures while managing locks
or replay records are logged and do not affect the result.
*/
func (c *Coordinator) Execute(ctx context.Context, key string, meta Metadata, handler Handler) (Outcome, error) {
	if key == "" {
		resp, err := handler(ctx)
		return Outcome{Response: resp}, err
	}
	if err := ValidateKey(key); err != nil {
		return Outcome{}, err
	}

	if rec, ok := c.replay(ctx, key); ok {
		return replayed(key, meta, rec)
	}

	if !c.acquire(ctx, key, meta) {
		if err := c.waitOnce(ctx); err != nil {
			return Outcome{}, err
		}
		if rec, ok := c.replay(ctx, key); ok {
			return replayed(key, meta, rec)
		}
		c.cfg.logger.Info("idempotency key still locked after wait, processing anyway", "key", key)
	}

	resp, err := handler(ctx)
	if err != nil {
		c.release(ctx, key)
		return Outcome{}, err
	}

	c.record(ctx, key, meta, resp)
	c.release(ctx, key)
	return Outcome{Response: resp}, nil
}

// Replay returns the recorded response for key, if any.
func (c *Coordinator) Replay(ctx context.Context, key string) (Response, bool, error) {
	if err := ValidateKey(key); err != nil {
		return Response{}, false, err
	}
	rec, ok := c.replay(ctx, key)
	return rec.Response, ok, nil
}

func (c *Coordinator) replay(ctx context.Context, key string) (ReplayRecord, bool) {
	b, ok, err := c.store.Get(ctx, replayKey(key))
	if err != nil {
		c.cfg.logger.Warn("idempotency replay lookup failed", "key", key, "error", err)
		return ReplayRecord{}, false
	}
	if !ok {
		return ReplayRecord{}, false
	}
	rec, err := decodeReplay(b)
	if err != nil {
		c.cfg.logger.Warn("idempotency replay record unreadable", "key", key, "error", err)
		return ReplayRecord{}, false
	}
	return rec, true
}

// replayed turns rec into a replay unless both sides carry a payload
// fingerprint and they differ.
func replayed(key string, meta Metadata, rec ReplayRecord) (Outcome, error) {
	if rec.Fingerprint != "" && meta.Fingerprint != "" && rec.Fingerprint != meta.Fingerprint {
		return Outcome{}, perrors.WrapWithContext(ErrKeyReused, perrors.CodeConflict,
			"idempotency key reused", map[string]interface{}{"key": key})
	}
	return Outcome{Response: rec.Response, Replayed: true}, nil
}

// acquire reports whether this caller holds the processing lock. A store
// failure counts as acquired: the request proceeds undeduplicated.
func (c *Coordinator) acquire(ctx context.Context, key string, meta Metadata) bool {
	b, err := encode(ProcessingLock{Key: key, Metadata: meta, CreatedAt: c.cfg.clock.Now()})
	if err != nil {
		c.cfg.logger.Warn("idempotency lock encode failed", "key", key, "error", err)
		return true
	}

	if c.atomic != nil {
		ok, err := c.atomic.SetIfAbsent(ctx, lockKey(key), b, c.cfg.lockTTL)
		if err != nil {
			c.cfg.logger.Warn("idempotency lock acquire failed", "key", key, "error", err)
			return true
		}
		return ok
	}

	// get-then-set: two callers can both see no lock here.
	_, held, err := c.store.Get(ctx, lockKey(key))
	if err != nil {
		c.cfg.logger.Warn("idempotency lock lookup failed", "key", key, "error", err)
		return true
	}
	if held {
		return false
	}
	if err := c.store.Set(ctx, lockKey(key), b, c.cfg.lockTTL); err != nil {
		c.cfg.logger.Warn("idempotency lock write failed", "key", key, "error", err)
	}
	return true
}

func (c *Coordinator) waitOnce(ctx context.Context) error {
	t := time.NewTimer(c.cfg.wait)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// record and release ignore ctx cancellation: once the handler has finished,
// the replay is written and the lock removed even if the client went away.
func (c *Coordinator) record(ctx context.Context, key string, meta Metadata, resp Response) {
	b, err := encode(ReplayRecord{
		Key:         key,
		Fingerprint: meta.Fingerprint,
		Response:    resp,
		CreatedAt:   c.cfg.clock.Now(),
	})
	if err != nil {
		c.cfg.logger.Warn("idempotency replay encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(context.WithoutCancel(ctx), replayKey(key), b, c.cfg.replayTTL); err != nil {
		c.cfg.logger.Warn("idempotency replay write failed", "key", key, "error", err)
	}
}

func (c *Coordinator) release(ctx context.Context, key string) {
	if err := c.store.Delete(context.WithoutCancel(ctx), lockKey(key)); err != nil {
		c.cfg.logger.Warn("idempotency lock release failed", "key", key, "error", err)
	}
}
