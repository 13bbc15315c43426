package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

// RedisCache stores cart views in redis behind a circuit breaker, so a redis
// outage degrades to database reads instead of stalling every cart request.
type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	settings := gobreaker.Settings{
		Name:    "cart-cache",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &RedisCache{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		baseTTL: 15 * time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context, userID int64) (*View, error) {
	data, err := r.breaker.Execute(func() ([]byte, error) {
		return r.client.Get(ctx, cacheKey(userID)).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var view View
	if e2 := json.Unmarshal(data, &view); e2 != nil {
		return nil, fmt.Errorf("unmarshal cart view failed: %w", e2)
	}
	return &view, nil
}

func (r *RedisCache) Set(ctx context.Context, userID int64, view *View) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal cart view failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	_, err = r.breaker.Execute(func() ([]byte, error) {
		return nil, r.client.Set(ctx, cacheKey(userID), data, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID int64) error {
	_, err := r.breaker.Execute(func() ([]byte, error) {
		return nil, r.client.Del(ctx, cacheKey(userID)).Err()
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}
