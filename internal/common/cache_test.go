package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func exerciseCache(t *testing.T, c CacheInterface) {
	ctx := context.Background()
	_, found := c.Get(ctx, "availability:1:2025-06-10")
	assert.False(t, found)

	c.Set(ctx, "availability:1:2025-06-10", "", time.Minute)
	v, found := c.Get(ctx, "availability:1:2025-06-10")
	require.True(t, found)
	assert.Equal(t, "", v)

	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "absence-7", nil
	}
	v, hit, err := c.GetOrLoad(ctx, "availability:2:2025-06-10", time.Minute, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "absence-7", v)
	v, hit, err = c.GetOrLoad(ctx, "availability:2:2025-06-10", time.Minute, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "absence-7", v)
	assert.Equal(t, 1, calls)

	_, _, err = c.GetOrLoad(ctx, "availability:3:2025-06-10", time.Minute, func(context.Context) (string, error) {
		return "", errors.New("boom")
	})
	assert.Error(t, err)
	_, found = c.Get(ctx, "availability:3:2025-06-10")
	assert.False(t, found)

	c.Delete(ctx, "availability:1:2025-06-10", "availability:2:2025-06-10")
	_, found = c.Get(ctx, "availability:1:2025-06-10")
	assert.False(t, found)
	_, found = c.Get(ctx, "availability:2:2025-06-10")
	assert.False(t, found)
}

func TestCacheService(t *testing.T) {
	exerciseCache(t, NewCacheService(time.Minute, time.Minute))
}

func TestRedisCacheService(t *testing.T) {
	mr, client := newRedis(t)
	c := NewRedisCacheService(client, "test:")
	exerciseCache(t, c)

	c.Set(context.Background(), "ttl-key", "x", time.Minute)
	assert.True(t, mr.Exists("test:ttl-key"))
	mr.FastForward(2 * time.Minute)
	_, found := c.Get(context.Background(), "ttl-key")
	assert.False(t, found)
}
