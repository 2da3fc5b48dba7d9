// Package loadtest drives a two-tier cache with many goroutines missing the
// same keys at once and reports how many upstream computations happened.
package loadtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	cache "github.com/krisalay/coordcache"
	"github.com/krisalay/coordcache/eviction"
	"github.com/krisalay/coordcache/store"
	"github.com/krisalay/coordcache/types"
)

// Config describes one load run.
type Config struct {
	Capacity        int
	Eviction        eviction.PolicyType
	Keys            int
	Goroutines      int
	OpsPerGoroutine int

	// ComputeDelay simulates a slow upstream.
	ComputeDelay time.Duration

	// Shared defaults to an in-process store.
	Shared types.SharedStore
}

// DefaultConfig returns the stampede run cmd/benchmark performs.
func DefaultConfig() Config {
	return Config{
		Capacity:        200000,
		Keys:            1000,
		Goroutines:      200,
		OpsPerGoroutine: 5000,
		ComputeDelay:    2 * time.Millisecond,
	}
}

// Report summarises a finished run.
type Report struct {
	Ops      int
	Computes int64
	Duration time.Duration
	Metrics  types.MetricsSnapshot
}

// Throughput returns operations per second.
func (r Report) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Duration.Seconds()
}

// Run performs one load test. All goroutines start together and walk the
// key space in the same order, so every key is first missed concurrently.
func Run(ctx context.Context, cfg Config) (Report, error) {
	if cfg.Keys <= 0 || cfg.Goroutines <= 0 || cfg.OpsPerGoroutine <= 0 {
		return Report{}, fmt.Errorf("keys, goroutines and ops must be positive")
	}

	shared := cfg.Shared
	if shared == nil {
		m := store.NewMemory()
		defer m.Close()
		shared = m
	}

	c, err := cache.New[int](shared, nil, cache.Options{Capacity: cfg.Capacity, Eviction: cfg.Eviction})
	if err != nil {
		return Report{}, err
	}
	defer c.Close()

	keys := make([]string, cfg.Keys)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	var computes atomic.Int64
	compute := func(i int) types.ComputeFunc[int] {
		return func(ctx context.Context) (int, error) {
			computes.Add(1)
			if cfg.ComputeDelay > 0 {
				time.Sleep(cfg.ComputeDelay)
			}
			return i, nil
		}
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(cfg.Goroutines)
	for g := 0; g < cfg.Goroutines; g++ {
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < cfg.OpsPerGoroutine; j++ {
				i := j % cfg.Keys
				if _, err := c.GetOrSetWithLock(ctx, keys[i], compute(i), types.Policy{}); err != nil {
					return
				}
			}
		}()
	}

	begin := time.Now()
	close(start)
	wg.Wait()

	return Report{
		Ops:      cfg.Goroutines * cfg.OpsPerGoroutine,
		Computes: computes.Load(),
		Duration: time.Since(begin),
		Metrics:  c.Metrics(),
	}, ctx.Err()
}
