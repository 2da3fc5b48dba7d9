package main

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/krisalay/coordcache/config"
	"github.com/krisalay/coordcache/eviction"
	"github.com/krisalay/coordcache/loadtest"
	"github.com/krisalay/coordcache/store"
)

func benchCmd() *cobra.Command {
	cfg := loadtest.DefaultConfig()
	var policy string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run an in-process stampede benchmark against the two-tier cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			app, err := config.Load(path)
			if err != nil {
				return err
			}
			cfg.Eviction = eviction.PolicyType(strings.ToUpper(policy))

			if app.Store.Backend == "redis" {
				client := redis.NewClient(&redis.Options{
					Addr:     app.Store.Redis.Addr,
					Password: app.Store.Redis.Password,
					DB:       app.Store.Redis.DB,
				})
				defer client.Close()
				cfg.Shared = store.NewRedis(client, store.WithPrefix(app.Store.Prefix+"bench:"))
			}

			r, err := loadtest.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "store        : %s\n", app.Store.Backend)
			fmt.Fprintf(out, "operations   : %d\n", r.Ops)
			fmt.Fprintf(out, "computations : %d (keys %d)\n", r.Computes, cfg.Keys)
			fmt.Fprintf(out, "hit rate     : %.4f\n", r.Metrics.HitRate)
			fmt.Fprintf(out, "duration     : %v\n", r.Duration)
			fmt.Fprintf(out, "throughput   : %.0f ops/sec\n", r.Throughput())
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "local tier capacity")
	cmd.Flags().StringVar(&policy, "eviction", string(eviction.FIFO), "FIFO or LRU")
	cmd.Flags().IntVar(&cfg.Keys, "keys", cfg.Keys, "distinct keys")
	cmd.Flags().IntVar(&cfg.Goroutines, "goroutines", cfg.Goroutines, "concurrent callers")
	cmd.Flags().IntVar(&cfg.OpsPerGoroutine, "ops", cfg.OpsPerGoroutine, "lookups per caller")
	cmd.Flags().DurationVar(&cfg.ComputeDelay, "compute-delay", cfg.ComputeDelay, "simulated upstream latency")

	return cmd
}
