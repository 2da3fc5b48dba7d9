package local

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/coordcache/eviction"
	"github.com/krisalay/coordcache/expiration"
)

func newTier(t *testing.T, capacity int) *Tier {
	t.Helper()
	ev, err := eviction.NewEvictionPolicy(eviction.FIFO)
	require.NoError(t, err)
	return NewTier(capacity, ev, expiration.Absolute{})
}

func TestTierFIFOBound(t *testing.T) {
	const capacity = 5
	now := time.Unix(0, 0)
	tier := newTier(t, capacity)

	for i := 1; i <= capacity+1; i++ {
		evicted := tier.Put(fmt.Sprintf("k%d", i), i, time.Minute, now)
		if i <= capacity {
			assert.Empty(t, evicted)
		} else {
			assert.Equal(t, []string{"k1"}, evicted)
		}
		assert.LessOrEqual(t, tier.Len(), capacity)
	}

	_, st := tier.Get("k1", now)
	assert.Equal(t, Miss, st)
	for i := 2; i <= capacity+1; i++ {
		_, st := tier.Get(fmt.Sprintf("k%d", i), now)
		assert.Equal(t, Hit, st, "k%d", i)
	}
}

func TestTierOverwriteDoesNotEvict(t *testing.T) {
	now := time.Unix(0, 0)
	tier := newTier(t, 2)

	tier.Put("a", 1, 0, now)
	tier.Put("b", 2, 0, now)
	assert.Empty(t, tier.Put("a", 3, 0, now))

	ent, st := tier.Get("a", now)
	require.Equal(t, Hit, st)
	assert.Equal(t, 3, ent.Value)
}

func TestTierExpiredIsRemoved(t *testing.T) {
	now := time.Unix(0, 0)
	tier := newTier(t, 2)

	tier.Put("a", 1, time.Second, now)

	_, st := tier.Get("a", now.Add(time.Second))
	assert.Equal(t, Expired, st)
	assert.Equal(t, 0, tier.Len())

	_, st = tier.Get("a", now)
	assert.Equal(t, Miss, st)
}

func TestTierDeleteFuncAndClear(t *testing.T) {
	now := time.Unix(0, 0)
	tier := newTier(t, 10)
	tier.Put("price:eth", 1, 0, now)
	tier.Put("price:btc", 2, 0, now)
	tier.Put("token:usdc", 3, 0, now)

	n := tier.DeleteFunc(func(k string) bool { return k[:6] == "price:" })
	assert.Equal(t, 2, n)
	assert.True(t, tier.Delete("token:usdc"))
	assert.False(t, tier.Delete("token:usdc"))

	tier.Put("x", 1, 0, now)
	assert.Equal(t, 1, tier.Clear())
	assert.Equal(t, 0, tier.Len())
}
