package writepolicy

import (
	"context"
	"log/slog"
	"time"

	"github.com/krisalay/coordcache/types"
)

// WriteThroughPolicy writes every value to the shared tier before returning.
type WriteThroughPolicy struct {
	store  types.SharedStore
	logger *slog.Logger
}

// NewWriteThroughPolicy writes every value to store synchronously.
func NewWriteThroughPolicy(store types.SharedStore, logger *slog.Logger) *WriteThroughPolicy {
	return &WriteThroughPolicy{store: store, logger: orDiscard(logger)}
}

/*
OnWrite is synchronous: if the shared store is slow, cache writes are slow.
The write is detached from ctx cancellation so a caller that has already
received its value does not abort the shared copy halfway.
*/
func (w *WriteThroughPolicy) OnWrite(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := w.store.Set(context.WithoutCancel(ctx), key, data, ttl); err != nil {
		w.logger.Warn("shared tier write failed", "key", key, "error", err)
	}
}

// Close has nothing to flush.
func (w *WriteThroughPolicy) Close() {}
