package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutricheck-server/internal/domain"
)

func newRedisGuard(t *testing.T) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), domain.CacheConfig{RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewRedisGuard(client, time.Hour), mr
}

func TestRedisGuard_Claim(t *testing.T) {
	g, mr := newRedisGuard(t)
	ctx := context.Background()

	// Act
	first, err := g.Claim(ctx, "sub-1")
	require.NoError(t, err)
	second, err := g.Claim(ctx, "sub-1")
	require.NoError(t, err)
	other, err := g.Claim(ctx, "sub-2")
	require.NoError(t, err)

	// Assert
	assert.True(t, first)
	assert.False(t, second, "second claim of the same key fails")
	assert.True(t, other)
	assert.True(t, mr.Exists(keyPrefix+"sub-1"))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"sub-1"))
}

func TestRedisGuard_Expiry(t *testing.T) {
	g, mr := newRedisGuard(t)
	ctx := context.Background()

	ok, err := g.Claim(ctx, "sub-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Hour)

	ok, err = g.Claim(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, ok, "expired claims can be taken again")
}

func TestRedisGuard_Release(t *testing.T) {
	g, _ := newRedisGuard(t)
	ctx := context.Background()

	ok, err := g.Claim(ctx, "sub-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, g.Release(ctx, "sub-1"))

	ok, err = g.Claim(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuard_ConnectionLost(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client, err := NewRedisClient(context.Background(), domain.CacheConfig{RedisURL: "redis://" + mr.Addr(), MaxRetries: 1})
	require.NoError(t, err)
	defer client.Close()
	g := NewRedisGuard(client, time.Minute)
	mr.Close()

	_, err = g.Claim(context.Background(), "sub-1")
	assert.Error(t, err)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), domain.CacheConfig{RedisURL: "://nope"})
	assert.Error(t, err)
}

func TestMemoryGuard_Claim(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	first, _ := g.Claim(ctx, "sub-1")
	second, _ := g.Claim(ctx, "sub-1")
	assert.True(t, first)
	assert.False(t, second)

	now = now.Add(2 * time.Minute)
	third, _ := g.Claim(ctx, "sub-1")
	assert.True(t, third, "expired claims can be taken again")

	require.NoError(t, g.Release(ctx, "sub-1"))
	fourth, _ := g.Claim(ctx, "sub-1")
	assert.True(t, fourth)
}

func TestMemoryGuard_ConcurrentClaims(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	var wins int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.Claim(context.Background(), "sub-1"); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}
