package cart

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mptx4869/store/internal/domain"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return cache, mr, cleanup
}

func TestRedisCache_GetHit(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	view := &View{
		CartID:      42,
		Status:      domain.CartStatusActive,
		TotalAmount: 5000,
		TotalItems:  3,
		Items: []ItemView{
			{ItemID: 1, BookID: 10, Quantity: 3, Price: 1500, OriginalPrice: 1500},
		},
	}
	data, err := json.Marshal(view)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(7), string(data)))

	got, err := cache.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.CartID)
	assert.Equal(t, domain.Cents(5000), got.TotalAmount)
	require.Len(t, got.Items, 1)
}

func TestRedisCache_GetMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	_, err := cache.Get(context.Background(), 7)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_SetAppliesTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	view := &View{CartID: 42, Status: domain.CartStatusActive}
	require.NoError(t, cache.Set(context.Background(), 7, view))

	require.True(t, mr.Exists(cacheKey(7)))
	ttl := mr.TTL(cacheKey(7))
	assert.GreaterOrEqual(t, ttl, cache.baseTTL)

	got, err := cache.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.CartID)
}

func TestRedisCache_Delete(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), 7, &View{CartID: 42}))
	require.NoError(t, cache.Delete(context.Background(), 7))
	assert.False(t, mr.Exists(cacheKey(7)))
}

func TestRedisCache_BreakerOpensOnOutage(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Close()

	// Consecutive failures trip the breaker; later calls fail fast instead
	// of timing out against the dead server.
	for i := 0; i < 7; i++ {
		_, err := cache.Get(context.Background(), 7)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCacheMiss)
	}
}
