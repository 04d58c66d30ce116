package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

func TestLRU_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewLRU[summary](2, time.Minute)

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", summary{Mean: 1}))
	got, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1.0, got.Mean)

	require.NoError(t, c.Set(ctx, "a", summary{Mean: 2}))
	got, _, _ = c.Get(ctx, "a")
	assert.Equal(t, 2.0, got.Mean)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLRU[int](2, 0)

	require.NoError(t, c.Set(ctx, "a", 1))
	require.NoError(t, c.Set(ctx, "b", 2))
	_, _, _ = c.Get(ctx, "a") // a is now most recent
	require.NoError(t, c.Set(ctx, "c", 3))

	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok, "b should be evicted")
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_TTL(t *testing.T) {
	ctx := context.Background()
	c := NewLRU[int](10, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "a", 1))
	now = now.Add(59 * time.Second)
	_, ok, _ := c.Get(ctx, "a")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRU_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewLRU[int](0, 0)
	require.NoError(t, c.Set(ctx, "a", 1))
	require.NoError(t, c.Delete(ctx, "a"))
	require.NoError(t, c.Delete(ctx, "missing"))
	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return s, client
}

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, client := newMiniredis(t)
	c := NewRedis[summary](client, "finplan:mc:", time.Hour)

	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", summary{Mean: 1.5, Median: 1.25}))
	assert.True(t, s.Exists("finplan:mc:k"))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, summary{Mean: 1.5, Median: 1.25}, got)

	s.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire")
}

func TestRedis_DeleteAndCorrupt(t *testing.T) {
	ctx := context.Background()
	s, client := newMiniredis(t)
	c := NewRedis[summary](client, "p:", 0)

	require.NoError(t, s.Set("p:bad", "not json"))
	_, _, err := c.Get(ctx, "bad")
	assert.Error(t, err)

	require.NoError(t, c.Set(ctx, "k", summary{Mean: 1}))
	require.NoError(t, c.Delete(ctx, "k"))
	assert.False(t, s.Exists("p:k"))
}

func TestRedis_PingAndClose(t *testing.T) {
	ctx := context.Background()
	s, _ := newMiniredis(t)
	c, err := New[int](Options{Backend: "redis", RedisAddr: s.Addr(), Prefix: "p:"})
	require.NoError(t, err)

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Close())
	assert.Error(t, c.Ping(ctx))
	assert.Error(t, c.Set(ctx, "k", 1))
}

func TestRedis_PingServerDown(t *testing.T) {
	s, client := newMiniredis(t)
	c := NewRedis[int](client, "p:", 0)
	s.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestLRU_PingAndClose(t *testing.T) {
	c := NewLRU[int](1, 0)
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}

func TestNew(t *testing.T) {
	c, err := New[int](Options{Backend: "memory", Size: 4, TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &LRU[int]{}, c)

	s, _ := newMiniredis(t)
	c, err = New[int](Options{Backend: "redis", RedisAddr: s.Addr(), Prefix: "x:"})
	require.NoError(t, err)
	assert.IsType(t, &Redis[int]{}, c)

	_, err = New[int](Options{Backend: "memcached"})
	assert.Error(t, err)
}
