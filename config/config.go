// Package config loads coordd configuration from defaults, an optional YAML
// file, and COORD_* environment variables, in increasing precedence.
package config

import (
	"math/big"
	"strings"
	"time"

	perrors "github.com/jmgilman/go/errors"
	"github.com/spf13/viper"

	"github.com/krisalay/coordcache/eviction"
	"github.com/krisalay/coordcache/expiration"
	"github.com/krisalay/coordcache/velocity"
	"github.com/krisalay/coordcache/writepolicy"
)

const EnvPrefix = "COORD"

// Config is the full coordd configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Store       StoreConfig       `mapstructure:"store"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Velocity    VelocityConfig    `mapstructure:"velocity"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig selects the log level and format (text or json).
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// StoreConfig selects and configures the shared store.
type StoreConfig struct {
	Backend string        `mapstructure:"backend"` // memory, redis
	Prefix  string        `mapstructure:"prefix"`
	Timeout time.Duration `mapstructure:"timeout"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig sizes the two-tier cache.
type CacheConfig struct {
	Capacity        int           `mapstructure:"capacity"`
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	Eviction        string        `mapstructure:"eviction"`
	Expiration      string        `mapstructure:"expiration"` // absolute, sliding
	WritePolicy     string        `mapstructure:"write_policy"`
	WriteBackBuffer int           `mapstructure:"write_back_buffer"`
	WarmConcurrency int           `mapstructure:"warm_concurrency"`
}

// IdempotencyConfig holds the coordinator TTLs and wait.
type IdempotencyConfig struct {
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	ReplayTTL   time.Duration `mapstructure:"replay_ttl"`
	Wait        time.Duration `mapstructure:"wait"`
	AtomicLocks bool          `mapstructure:"atomic_locks"`
}

// VelocityConfig holds the default daily limits. MaxValue is a decimal string
// so limits beyond 64 bits can be expressed.
type VelocityConfig struct {
	MaxCount int64  `mapstructure:"max_count"`
	MaxValue string `mapstructure:"max_value"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{
			Backend: "memory",
			Timeout: 5 * time.Second,
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		Cache: CacheConfig{
			Capacity:        10000,
			DefaultTTL:      5 * time.Minute,
			Eviction:        string(eviction.FIFO),
			Expiration:      "absolute",
			WritePolicy:     string(writepolicy.WriteThrough),
			WriteBackBuffer: 1024,
			WarmConcurrency: 16,
		},
		Idempotency: IdempotencyConfig{
			LockTTL:     60 * time.Second,
			ReplayTTL:   24 * time.Hour,
			Wait:        100 * time.Millisecond,
			AtomicLocks: true,
		},
		Velocity: VelocityConfig{MaxCount: 100},
	}
}

/*
Load reads configuration. path may be empty, in which case only defaults and
environment apply. Environment keys are the dotted keys upper-cased with '.'
replaced by '_', e.g. COORD_STORE_BACKEND or COORD_CACHE_DEFAULT_TTL.
*/
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, perrors.WrapWithContext(err, perrors.CodeInvalidConfig, "read config file",
				map[string]interface{}{"path": path})
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, perrors.Wrap(err, perrors.CodeInvalidConfig, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.prefix", d.Store.Prefix)
	v.SetDefault("store.timeout", d.Store.Timeout)
	v.SetDefault("store.redis.addr", d.Store.Redis.Addr)
	v.SetDefault("store.redis.password", d.Store.Redis.Password)
	v.SetDefault("store.redis.db", d.Store.Redis.DB)
	v.SetDefault("cache.capacity", d.Cache.Capacity)
	v.SetDefault("cache.default_ttl", d.Cache.DefaultTTL)
	v.SetDefault("cache.eviction", d.Cache.Eviction)
	v.SetDefault("cache.expiration", d.Cache.Expiration)
	v.SetDefault("cache.write_policy", d.Cache.WritePolicy)
	v.SetDefault("cache.write_back_buffer", d.Cache.WriteBackBuffer)
	v.SetDefault("cache.warm_concurrency", d.Cache.WarmConcurrency)
	v.SetDefault("idempotency.lock_ttl", d.Idempotency.LockTTL)
	v.SetDefault("idempotency.replay_ttl", d.Idempotency.ReplayTTL)
	v.SetDefault("idempotency.wait", d.Idempotency.Wait)
	v.SetDefault("idempotency.atomic_locks", d.Idempotency.AtomicLocks)
	v.SetDefault("velocity.max_count", d.Velocity.MaxCount)
	v.SetDefault("velocity.max_value", d.Velocity.MaxValue)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	invalid := func(key string, value interface{}, msg string) error {
		return perrors.WrapWithContext(
			perrors.New(perrors.CodeInvalidConfig, msg),
			perrors.CodeInvalidConfig, "invalid "+key,
			map[string]interface{}{"key": key, "value": value})
	}

	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return invalid("store.backend", c.Store.Backend, "must be memory or redis")
	}
	if c.Cache.Capacity <= 0 {
		return invalid("cache.capacity", c.Cache.Capacity, "must be positive")
	}
	if _, err := eviction.NewEvictionPolicy(eviction.PolicyType(strings.ToUpper(c.Cache.Eviction))); err != nil {
		return invalid("cache.eviction", c.Cache.Eviction, "must be FIFO or LRU")
	}
	switch c.Cache.Expiration {
	case "absolute", "sliding":
	default:
		return invalid("cache.expiration", c.Cache.Expiration, "must be absolute or sliding")
	}
	switch writepolicy.Kind(c.Cache.WritePolicy) {
	case writepolicy.WriteThrough, writepolicy.WriteBack:
	default:
		return invalid("cache.write_policy", c.Cache.WritePolicy, "must be write-through or write-back")
	}
	if c.Idempotency.LockTTL <= 0 || c.Idempotency.ReplayTTL <= 0 {
		return invalid("idempotency", c.Idempotency, "lock_ttl and replay_ttl must be positive")
	}
	if _, err := c.Velocity.Limits(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format", c.Log.Format, "must be text or json")
	}
	return nil
}

// EvictionPolicy returns the configured eviction policy name, normalised.
func (c CacheConfig) EvictionPolicy() eviction.PolicyType {
	return eviction.PolicyType(strings.ToUpper(c.Eviction))
}

// ExpirationStrategy returns the local-tier expiration strategy. Sliding
// entries live DefaultTTL past their last read.
func (c CacheConfig) ExpirationStrategy() expiration.Strategy {
	if c.Expiration == "sliding" {
		return &expiration.Sliding{TTL: c.DefaultTTL}
	}
	return expiration.Absolute{}
}

// Limits converts the configured limits. An empty MaxValue means unlimited.
func (c VelocityConfig) Limits() (velocity.Limits, error) {
	l := velocity.Limits{MaxCount: c.MaxCount}
	if c.MaxValue == "" {
		return l, nil
	}
	v, ok := new(big.Int).SetString(c.MaxValue, 10)
	if !ok || v.Sign() < 0 {
		return l, perrors.WithContext(
			perrors.New(perrors.CodeInvalidConfig, "velocity.max_value must be a non-negative integer"),
			"value", c.MaxValue)
	}
	l.MaxValue = v
	return l, nil
}
