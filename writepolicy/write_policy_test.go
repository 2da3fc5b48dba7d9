package writepolicy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *recordingStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *recordingStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *recordingStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *recordingStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = map[string][]byte{}
	return nil
}

func (s *recordingStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func TestWriteThrough(t *testing.T) {
	st := newRecordingStore()
	p, err := New(WriteThrough, st, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.OnWrite(ctx, "k", []byte("v"), time.Minute)

	got, ok, _ := st.Get(context.Background(), "k")
	assert.True(t, ok, "write-through must not depend on the caller's context")
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, time.Minute, st.ttls["k"])
}

func TestWriteThroughSwallowsErrors(t *testing.T) {
	st := newRecordingStore()
	st.err = errors.New("down")

	p := NewWriteThroughPolicy(st, nil)
	assert.NotPanics(t, func() { p.OnWrite(context.Background(), "k", []byte("v"), 0) })
}

func TestWriteBackFlushesOnClose(t *testing.T) {
	st := newRecordingStore()
	p := NewWriteBackPolicy(st, 128, nil)

	for i := 0; i < 100; i++ {
		p.OnWrite(context.Background(), string(rune('a'+i%26))+string(rune('0'+i/26)), []byte{byte(i)}, 0)
	}
	p.Close()
	p.Close()

	assert.Equal(t, 100, st.len())

	p.OnWrite(context.Background(), "late", []byte("x"), 0)
	assert.Equal(t, 100, st.len())
}

func TestNewUnknown(t *testing.T) {
	_, err := New("write-around", newRecordingStore(), 0, nil)
	assert.Error(t, err)
}
