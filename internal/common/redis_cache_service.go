package common

import (
	"context"
	"errors"
	"time"

	"caretransport/dispatch/internal/logging"

	"github.com/redis/go-redis/v9"
)

// RedisCacheService shares cache entries between instances. Redis failures
// degrade to misses and are only logged.
type RedisCacheService struct {
	client *redis.Client
	prefix string
}

var _ CacheInterface = (*RedisCacheService)(nil)

// NewRedisCacheService creates a Redis-backed cache whose keys share prefix
func NewRedisCacheService(client *redis.Client, prefix string) *RedisCacheService {
	return &RedisCacheService{client: client, prefix: prefix}
}

func (r *RedisCacheService) key(k string) string {
	return r.prefix + k
}

func (r *RedisCacheService) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		logging.Warn("Redis cache: failed to get key", "key", key, "error", err.Error())
		return "", false
	}
	return v, true
}

func (r *RedisCacheService) Set(ctx context.Context, key string, value string, ttl time.Duration) {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		logging.Warn("Redis cache: failed to set key", "key", key, "error", err.Error())
	}
}

// Delete removes keys in one round trip
func (r *RedisCacheService) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		logging.Warn("Redis cache: failed to delete keys", "keys", len(keys), "error", err.Error())
	}
}

func (r *RedisCacheService) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) (string, error)) (string, bool, error) {
	return getOrLoad(ctx, r, key, ttl, load)
}

func (r *RedisCacheService) Close() error {
	return r.client.Close()
}
