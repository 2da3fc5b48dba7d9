package store

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/krisalay/coordcache/types"
)

/*
Memory is an in-process shared store backed by ttlcache.

Reads never extend a key's TTL. A mutex serialises writes so SetIfAbsent is a
real conditional write; ttlcache expires keys lazily on Get and removes them in
the background once Start has been called by NewMemory.
*/
type Memory struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, []byte]
}

var _ types.AtomicStore = (*Memory)(nil)

// NewMemory starts an in-process store with its expiry loop running. Call Close to stop it.
func NewMemory() *Memory {
	c := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go c.Start()
	return &Memory{cache: c}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, unavailable(err, "get", key)
	}
	item := m.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false, nil
	}
	return clone(item.Value()), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err, "set", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Set(key, clone(value), memoryTTL(ttl))
	return nil
}

func (m *Memory) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable(err, "setnx", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if item := m.cache.Get(key); item != nil && !item.IsExpired() {
		return false, nil
	}
	m.cache.Set(key, clone(value), memoryTTL(ttl))
	return true, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err, "delete", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Delete(key)
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err, "clear", "*")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.DeleteAll()
	return nil
}

// Len returns the number of keys, including expired keys not yet collected.
func (m *Memory) Len() int {
	return m.cache.Len()
}

// Close stops the background expiry loop.
func (m *Memory) Close() {
	m.cache.Stop()
}

func memoryTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttlcache.NoTTL
	}
	return ttl
}

// Stored bytes are copied in and out so callers cannot mutate shared state.
func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
