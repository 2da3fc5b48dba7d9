package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	perrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/coordcache/eviction"
	"github.com/krisalay/coordcache/expiration"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: redis
  prefix: "payments:"
  redis:
    addr: redis:6379
cache:
  capacity: 500
  default_ttl: 30s
  eviction: lru
  expiration: sliding
velocity:
  max_value: "1000000000000000000000"
`), 0o600))

	t.Setenv("COORD_CACHE_CAPACITY", "750")
	t.Setenv("COORD_IDEMPOTENCY_WAIT", "250ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "payments:", cfg.Store.Prefix)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 750, cfg.Cache.Capacity, "env overrides file")
	assert.Equal(t, 30*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, eviction.LRU, cfg.Cache.EvictionPolicy())
	assert.Equal(t, 250*time.Millisecond, cfg.Idempotency.Wait)
	assert.Equal(t, &expiration.Sliding{TTL: 30 * time.Second}, cfg.Cache.ExpirationStrategy())

	limits, err := cfg.Velocity.Limits()
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000", limits.MaxValue.String())
	assert.Equal(t, int64(100), limits.MaxCount)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"backend":      func(c *Config) { c.Store.Backend = "etcd" },
		"capacity":     func(c *Config) { c.Cache.Capacity = 0 },
		"eviction":     func(c *Config) { c.Cache.Eviction = "LFU" },
		"expiration":   func(c *Config) { c.Cache.Expiration = "never" },
		"write policy": func(c *Config) { c.Cache.WritePolicy = "write-around" },
		"lock ttl":     func(c *Config) { c.Idempotency.LockTTL = 0 },
		"max value":    func(c *Config) { c.Velocity.MaxValue = "12abc" },
		"log format":   func(c *Config) { c.Log.Format = "xml" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, perrors.CodeInvalidConfig, perrors.GetCode(err))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Equal(t, perrors.CodeInvalidConfig, perrors.GetCode(err))
}
