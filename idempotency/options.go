package idempotency

import (
	"log/slog"
	"time"

	"github.com/krisalay/coordcache/types"
)

const (
	DefaultLockTTL   = 60 * time.Second
	DefaultReplayTTL = 24 * time.Hour
	DefaultWait      = 100 * time.Millisecond
)

// config holds the configuration for a Coordinator.
type config struct {
	lockTTL     time.Duration
	replayTTL   time.Duration
	wait        time.Duration
	atomicLocks bool
	clock       types.Clock
	logger      *slog.Logger
}

// Option configures a Coordinator.
type Option func(*config)

// WithLockTTL bounds how long a crashed request can block its key.
//
// Default: 60 seconds
func WithLockTTL(d time.Duration) Option {
	return func(c *config) { c.lockTTL = d }
}

// WithReplayTTL sets how long completed responses are replayed.
//
// Default: 24 hours
func WithReplayTTL(d time.Duration) Option {
	return func(c *config) { c.replayTTL = d }
}

// WithWait sets the single wait before re-checking a contended key.
//
// Default: 100 milliseconds
func WithWait(d time.Duration) Option {
	return func(c *config) { c.wait = d }
}

// WithAtomicLocks controls whether SetIfAbsent is used when the store offers it.
// Disabling it forces get-then-set lock acquisition.
//
// Default: true
func WithAtomicLocks(enabled bool) Option {
	return func(c *config) { c.atomicLocks = enabled }
}

// WithClock sets the clock used to stamp records.
func WithClock(clk types.Clock) Option {
	return func(c *config) { c.clock = clk }
}

// WithLogger sets where swallowed store failures are reported.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}
