package idempotency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	perrors "github.com/jmgilman/go/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/coordcache/store"
	"github.com/krisalay/coordcache/types"
)

// countingStore counts every store call.
type countingStore struct {
	types.AtomicStore
	calls atomic.Int64
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.calls.Add(1)
	return s.AtomicStore.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.calls.Add(1)
	return s.AtomicStore.Set(ctx, key, value, ttl)
}

func (s *countingStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.calls.Add(1)
	return s.AtomicStore.SetIfAbsent(ctx, key, value, ttl)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	s.calls.Add(1)
	return s.AtomicStore.Delete(ctx, key)
}

// plainStore hides SetIfAbsent.
type plainStore struct {
	types.SharedStore
}

func newMemory(t *testing.T) *store.Memory {
	m := store.NewMemory()
	t.Cleanup(m.Close)
	return m
}

func created(id string, calls *atomic.Int32) Handler {
	return func(context.Context) (Response, error) {
		calls.Add(1)
		return Response{Status: 201, Body: []byte(`{"id":"` + id + `"}`)}, nil
	}
}

func has(t *testing.T, s types.SharedStore, key string) bool {
	t.Helper()
	_, ok, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestExecuteReplaysCompletedRequest(t *testing.T) {
	ctx := context.Background()
	mem := newMemory(t)
	coord := NewCoordinator(mem)
	var calls atomic.Int32

	first, err := coord.Execute(ctx, "order-42", Metadata{Method: "POST", Path: "/v1/payments"}, created("X", &calls))
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, `{"id":"X"}`, string(first.Response.Body))

	second, err := coord.Execute(ctx, "order-42", Metadata{}, created("Y", &calls))
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Response, second.Response)

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, has(t, mem, "idempotency:order-42"))
	assert.False(t, has(t, mem, "idempotency:lock:order-42"), "lock is released after completion")
}

func TestExecuteRejectsKeyReusedWithDifferentFingerprint(t *testing.T) {
	ctx := context.Background()
	coord := NewCoordinator(newMemory(t))
	var calls atomic.Int32
	meta := Metadata{Method: "POST", Path: "/v1/payments", Fingerprint: Fingerprint([]byte(`{"amount":"100"}`))}

	_, err := coord.Execute(ctx, "order-50", meta, created("X", &calls))
	require.NoError(t, err)

	again, err := coord.Execute(ctx, "order-50", meta, created("Y", &calls))
	require.NoError(t, err)
	assert.True(t, again.Replayed)

	// callers that do not fingerprint still get the replay
	bare, err := coord.Execute(ctx, "order-50", Metadata{}, created("Z", &calls))
	require.NoError(t, err)
	assert.True(t, bare.Replayed)

	other := meta
	other.Fingerprint = Fingerprint([]byte(`{"amount":"999"}`))
	_, err = coord.Execute(ctx, "order-50", other, created("W", &calls))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyReused)
	assert.Equal(t, perrors.CodeConflict, perrors.GetCode(err))

	assert.Equal(t, int32(1), calls.Load())
}

func TestExecuteDoesNotRecordFailures(t *testing.T) {
	ctx := context.Background()
	mem := newMemory(t)
	coord := NewCoordinator(mem)
	declined := errors.New("card declined")

	_, err := coord.Execute(ctx, "order-43", Metadata{}, func(context.Context) (Response, error) {
		return Response{}, declined
	})
	assert.Same(t, declined, err, "handler errors propagate unchanged")
	assert.False(t, has(t, mem, "idempotency:order-43"))
	assert.False(t, has(t, mem, "idempotency:lock:order-43"), "failure still releases the lock")

	var calls atomic.Int32
	out, err := coord.Execute(ctx, "order-43", Metadata{}, created("Z", &calls))
	require.NoError(t, err)
	assert.False(t, out.Replayed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecuteRejectsInvalidKeyWithoutStoreAccess(t *testing.T) {
	cs := &countingStore{AtomicStore: newMemory(t)}
	coord := NewCoordinator(cs)
	var calls atomic.Int32

	for _, key := range []string{"has space", "tab\tkey", string(make([]byte, 300))} {
		_, err := coord.Execute(context.Background(), key, Metadata{}, created("X", &calls))
		assert.ErrorIs(t, err, ErrInvalidKey)
	}
	assert.Zero(t, cs.calls.Load())
	assert.Zero(t, calls.Load())
}

func TestExecuteWithoutKeyPassesThrough(t *testing.T) {
	cs := &countingStore{AtomicStore: newMemory(t)}
	coord := NewCoordinator(cs)
	var calls atomic.Int32

	for i := 0; i < 2; i++ {
		out, err := coord.Execute(context.Background(), "", Metadata{}, created("X", &calls))
		require.NoError(t, err)
		assert.False(t, out.Replayed)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Zero(t, cs.calls.Load())
}

func TestExecuteContendedKeyReplaysAfterWait(t *testing.T) {
	ctx := context.Background()
	mem := newMemory(t)
	coord := NewCoordinator(mem, WithWait(100*time.Millisecond))

	lock, err := encode(ProcessingLock{Key: "order-44", CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, mem.Set(ctx, "idempotency:lock:order-44", lock, time.Minute))

	go func() {
		time.Sleep(10 * time.Millisecond)
		rec, _ := encode(ReplayRecord{Key: "order-44", Response: Response{Status: 201, Body: []byte("done")}})
		_ = mem.Set(ctx, "idempotency:order-44", rec, time.Hour)
	}()

	var calls atomic.Int32
	out, err := coord.Execute(ctx, "order-44", Metadata{}, created("dup", &calls))
	require.NoError(t, err)
	assert.True(t, out.Replayed)
	assert.Equal(t, "done", string(out.Response.Body))
	assert.Zero(t, calls.Load())
}

func TestExecuteContendedKeyFallsThrough(t *testing.T) {
	ctx := context.Background()
	mem := newMemory(t)
	coord := NewCoordinator(mem, WithWait(5*time.Millisecond))

	require.NoError(t, mem.Set(ctx, "idempotency:lock:order-45", []byte("held"), time.Minute))

	var calls atomic.Int32
	out, err := coord.Execute(ctx, "order-45", Metadata{}, created("X", &calls))
	require.NoError(t, err)
	assert.False(t, out.Replayed)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, has(t, mem, "idempotency:order-45"))
}

func TestExecuteContendedWaitHonoursContext(t *testing.T) {
	mem := newMemory(t)
	coord := NewCoordinator(mem, WithWait(time.Hour))
	require.NoError(t, mem.Set(context.Background(), "idempotency:lock:order-46", []byte("held"), time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	var calls atomic.Int32
	_, err := coord.Execute(ctx, "order-46", Metadata{}, created("X", &calls))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, calls.Load())
}

func TestExecuteHoldsLockWhileProcessing(t *testing.T) {
	for name, s := range map[string]types.SharedStore{
		"atomic":       newMemory(t),
		"get-then-set": plainStore{newMemory(t)},
	} {
		t.Run(name, func(t *testing.T) {
			coord := NewCoordinator(s)
			_, err := coord.Execute(context.Background(), "order-47", Metadata{}, func(context.Context) (Response, error) {
				assert.True(t, has(t, s, "idempotency:lock:order-47"))
				return Response{Status: 200}, nil
			})
			require.NoError(t, err)
			assert.False(t, has(t, s, "idempotency:lock:order-47"))
		})
	}
}

func TestExecuteSurvivesStoreOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	coord := NewCoordinator(store.NewRedis(client, store.WithTimeout(100*time.Millisecond)))

	var calls atomic.Int32
	out, err := coord.Execute(context.Background(), "order-48", Metadata{}, created("X", &calls))
	require.NoError(t, err)
	assert.Equal(t, 201, out.Response.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestReplay(t *testing.T) {
	ctx := context.Background()
	coord := NewCoordinator(newMemory(t))

	_, ok, err := coord.Replay(ctx, "order-49")
	require.NoError(t, err)
	assert.False(t, ok)

	var calls atomic.Int32
	_, err = coord.Execute(ctx, "order-49", Metadata{}, created("X", &calls))
	require.NoError(t, err)

	resp, ok, err := coord.Replay(ctx, "order-49")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 201, resp.Status)

	_, _, err = coord.Replay(ctx, "bad key")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
