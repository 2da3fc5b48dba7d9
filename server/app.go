// Package server exposes the coordination layer over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	cache "github.com/krisalay/coordcache"
	"github.com/krisalay/coordcache/api"
	"github.com/krisalay/coordcache/config"
	"github.com/krisalay/coordcache/engine"
	"github.com/krisalay/coordcache/idempotency"
	"github.com/krisalay/coordcache/metrics"
	"github.com/krisalay/coordcache/store"
	"github.com/krisalay/coordcache/types"
	"github.com/krisalay/coordcache/velocity"
	"github.com/krisalay/coordcache/writepolicy"
)

// App owns every component coordd runs and their shutdown order.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	store       types.SharedStore
	prices      api.Cache[Price]
	source      PriceSource
	coordinator *idempotency.Coordinator
	counter     *velocity.Counter
	limits      velocity.Limits
	registry    *prometheus.Registry

	closers []func()
}

// Option customises an App, mostly for tests.
type Option func(*App)

// WithStore replaces the configured shared store.
func WithStore(s types.SharedStore) Option { return func(a *App) { a.store = s } }

// WithPriceSource replaces the built-in price table.
func WithPriceSource(p PriceSource) Option { return func(a *App) { a.source = p } }

// NewApp builds the shared store, cache, coordinator and counter from cfg.
func NewApp(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	for _, opt := range opts {
		opt(a)
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if a.store == nil {
		s, err := a.openStore()
		if err != nil {
			return nil, err
		}
		a.store = s
	}
	if a.source == nil {
		a.source = DefaultPrices()
	}

	limits, err := cfg.Velocity.Limits()
	if err != nil {
		return nil, err
	}
	a.limits = limits

	sink, err := metrics.NewPrometheus(a.registry, "prices")
	if err != nil {
		return nil, fmt.Errorf("register cache metrics: %w", err)
	}
	wp, err := writepolicy.New(writepolicy.Kind(cfg.Cache.WritePolicy), a.store, cfg.Cache.WriteBackBuffer,
		logger.With("component", "writepolicy"))
	if err != nil {
		return nil, err
	}

	eng := engine.NewCacheEngine(
		engine.WithExpiration(cfg.Cache.ExpirationStrategy()),
		engine.WithWritePolicy(wp),
		engine.WithMetrics(sink),
		engine.WithLogger(logger.With("component", "cache")),
	)
	prices, err := cache.New[Price](a.store, eng, cache.Options{
		Capacity:        cfg.Cache.Capacity,
		Eviction:        cfg.Cache.EvictionPolicy(),
		DefaultTTL:      cfg.Cache.DefaultTTL,
		WarmConcurrency: cfg.Cache.WarmConcurrency,
	})
	if err != nil {
		return nil, err
	}
	a.prices = prices
	a.closers = append(a.closers, prices.Close)

	a.coordinator = idempotency.NewCoordinator(a.store,
		idempotency.WithLockTTL(cfg.Idempotency.LockTTL),
		idempotency.WithReplayTTL(cfg.Idempotency.ReplayTTL),
		idempotency.WithWait(cfg.Idempotency.Wait),
		idempotency.WithAtomicLocks(cfg.Idempotency.AtomicLocks),
		idempotency.WithLogger(logger.With("component", "idempotency")),
	)
	a.counter = velocity.NewCounter(a.store, velocity.WithLogger(logger.With("component", "velocity")))

	return a, nil
}

func (a *App) openStore() (types.SharedStore, error) {
	switch a.cfg.Store.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Store.Redis.Addr,
			Password: a.cfg.Store.Redis.Password,
			DB:       a.cfg.Store.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = client.Close() })
		return store.NewRedis(client,
			store.WithPrefix(a.cfg.Store.Prefix),
			store.WithTimeout(a.cfg.Store.Timeout),
		), nil
	case "memory":
		m := store.NewMemory()
		a.closers = append(a.closers, m.Close)
		return m, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.Store.Backend)
	}
}

// WarmPrices loads the given symbols into the cache.
func (a *App) WarmPrices(ctx context.Context, symbols []string) types.WarmReport {
	keys := make([]string, len(symbols))
	bySymbol := make(map[string]string, len(symbols))
	for i, s := range symbols {
		keys[i] = priceKey(s)
		bySymbol[keys[i]] = s
	}

	report := a.prices.Warm(ctx, keys, func(ctx context.Context, key string) (Price, error) {
		return a.source.Quote(ctx, bySymbol[key])
	}, types.Policy{})

	a.logger.Info("price cache warmed", "warmed", report.Warmed, "failed", len(report.Failed))
	return report
}

/*
Run serves HTTP on the configured address until ctx is done, then shuts the
server down, waiting up to 10 seconds for in-flight requests.
*/
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("coordd listening", "addr", srv.Addr, "store", a.cfg.Store.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases resources in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
