package writepolicy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/krisalay/coordcache/types"
)

// This file implements the "write-back" policy.

// writeReq is one pending shared-tier write.
type writeReq struct {
	ctx  context.Context
	key  string
	data []byte
	ttl  time.Duration
}

/*
WriteBackPolicy queues shared-tier writes and applies them from one background
worker. The shared tier lags the local tier by the queue depth.
*/
type WriteBackPolicy struct {
	store  types.SharedStore
	logger *slog.Logger

	// ch buffers pending writes so bursts do not block callers.
	ch chan writeReq

	mu     sync.RWMutex
	closed bool

	wg sync.WaitGroup
}

// NewWriteBackPolicy creates the policy and starts its worker.
func NewWriteBackPolicy(store types.SharedStore, buffer int, logger *slog.Logger) *WriteBackPolicy {
	w := &WriteBackPolicy{
		store:  store,
		logger: orDiscard(logger),
		ch:     make(chan writeReq, buffer),
	}

	w.wg.Add(1)
	go w.worker()

	return w
}

/*
OnWrite enqueues the write. When the queue is full, or the policy is closed,
the write is dropped and logged; the local tier still holds the value.
*/
func (w *WriteBackPolicy) OnWrite(ctx context.Context, key string, data []byte, ttl time.Duration) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.logger.Warn("write-back closed, dropping write", "key", key)
		return
	}

	select {
	case w.ch <- writeReq{context.WithoutCancel(ctx), key, data, ttl}:
	default:
		w.logger.Warn("write-back queue full, dropping write", "key", key)
	}
}

func (w *WriteBackPolicy) worker() {
	defer w.wg.Done()

	for req := range w.ch {
		if err := w.store.Set(req.ctx, req.key, req.data, req.ttl); err != nil {
			w.logger.Warn("write-back to shared tier failed", "key", req.key, "error", err)
		}
	}
}

// Pending returns the number of queued writes.
func (w *WriteBackPolicy) Pending() int {
	return len(w.ch)
}

/*
Close stops accepting writes and waits until every queued write has been
applied. It is safe to call more than once.
*/
func (w *WriteBackPolicy) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	w.wg.Wait()
}
