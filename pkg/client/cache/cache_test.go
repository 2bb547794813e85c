package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstonehub/notify/pkg/client/cache"
)

func TestStore_SetGetDelete(t *testing.T) {
	s := cache.NewStore()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("k", 42, time.Minute)
	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	s.Delete("k")
	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestStore_Expiry(t *testing.T) {
	s := cache.NewStore()

	s.Set("short", "v", 10*time.Millisecond)
	_, ok := s.Get("short")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = s.Get("short")
	assert.False(t, ok)
}

func TestStore_GetWithTTL(t *testing.T) {
	s := cache.NewStore()

	s.Set("k", "v", time.Minute)
	v, ttl, ok := s.GetWithTTL("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)

	s.Set("forever", "v", cache.NoExpiration)
	_, ttl, ok = s.GetWithTTL("forever")
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), ttl)

	_, _, ok = s.GetWithTTL("missing")
	assert.False(t, ok)
}

func TestStore_PrefixOperations(t *testing.T) {
	s := cache.NewStore()

	s.Set("list:a", 1, time.Minute)
	s.Set("list:b", 2, time.Minute)
	s.Set("count", 3, time.Minute)

	keys := s.KeysWithPrefix("list:")
	assert.Len(t, keys, 2)
	assert.ElementsMatch(t, []string{"list:a", "list:b"}, keys)

	s.DeleteWithPrefix("list:")
	assert.Empty(t, s.KeysWithPrefix("list:"))
	_, ok := s.Get("count")
	assert.True(t, ok)

	s.Flush()
	_, ok = s.Get("count")
	assert.False(t, ok)
}
