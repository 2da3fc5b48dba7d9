package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/krisalay/coordcache/types"
)

// DefaultTimeout bounds every Redis round trip.
const DefaultTimeout = 5 * time.Second

const scanBatch = 500

// Redis is a shared store on top of a go-redis client.
// The caller owns the client lifecycle.
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

var _ types.AtomicStore = (*Redis)(nil)

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithPrefix namespaces every key, e.g. "payments:" turns "velocity:u1:2024-01-01"
// into "payments:velocity:u1:2024-01-01". Clear only touches prefixed keys.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithTimeout sets the per-operation timeout. Zero disables it.
func WithTimeout(d time.Duration) RedisOption {
	return func(r *Redis) { r.timeout = d }
}

// NewRedis wraps client. The caller keeps ownership of the client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(err, "get", key)
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	return unavailable(r.client.Set(ctx, r.key(key), value, redisTTL(ttl)).Err(), "set", key)
}

// SetIfAbsent maps to SET NX.
func (r *Redis) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	ok, err := r.client.SetNX(ctx, r.key(key), value, redisTTL(ttl)).Result()
	if err != nil {
		return false, unavailable(err, "setnx", key)
	}
	return ok, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	return unavailable(r.client.Del(ctx, r.key(key)).Err(), "delete", key)
}

// Clear removes every key under the prefix with SCAN + DEL.
// Without a prefix the whole logical database is flushed.
func (r *Redis) Clear(ctx context.Context) error {
	if r.prefix == "" {
		ctx, cancel := r.opContext(ctx)
		defer cancel()
		return unavailable(r.client.FlushDB(ctx).Err(), "flush", "*")
	}

	iter := r.client.Scan(ctx, 0, r.prefix+"*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return unavailable(err, "clear", r.prefix+"*")
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return unavailable(err, "scan", r.prefix+"*")
	}
	if len(batch) > 0 {
		return unavailable(r.client.Del(ctx, batch...).Err(), "clear", r.prefix+"*")
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	return unavailable(r.client.Ping(ctx).Err(), "ping", "")
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// go-redis treats 0 as "no expiration".
func redisTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}
