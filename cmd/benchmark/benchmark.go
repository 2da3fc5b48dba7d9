package main

import (
	"context"
	"fmt"
	"os"

	"github.com/krisalay/coordcache/eviction"
	"github.com/krisalay/coordcache/loadtest"
)

// ================= BENCHMARK =================

func main() {
	ctx := context.Background()

	cfg := loadtest.DefaultConfig()
	cfg.Eviction = eviction.FIFO

	fmt.Println("\n================ CACHE STAMPEDE BENCHMARK =================")

	// ---------------- Cache Config ----------------
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Capacity     :", cfg.Capacity)
	fmt.Println("Eviction     :", cfg.Eviction)
	fmt.Println("Keys         :", cfg.Keys)
	fmt.Println("Goroutines   :", cfg.Goroutines)
	fmt.Println("Ops/Goroutine:", cfg.OpsPerGoroutine)
	fmt.Println("Compute Delay:", cfg.ComputeDelay)
	fmt.Println("---------------------------------")

	// ---------------- Load Test ----------------
	fmt.Println("Running concurrency benchmark...")

	r, err := loadtest.Run(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "benchmark failed:", err)
		os.Exit(1)
	}

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", r.Ops)
	fmt.Printf("Computations     : %d (keys: %d)\n", r.Computes, cfg.Keys)
	fmt.Printf("Hit Rate         : %.4f\n", r.Metrics.HitRate)
	fmt.Printf("Total Time       : %v\n", r.Duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", r.Throughput())
	fmt.Println("=========================================")
}
