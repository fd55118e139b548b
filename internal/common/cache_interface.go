package common

import (
	"context"
	"time"
)

// CacheInterface is the short-lived string store behind driver availability
// answers and delay de-duplication. Entries expire after their ttl.
type CacheInterface interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)

	// GetOrLoad returns the cached value of key. On a miss it calls load and
	// caches the result for ttl; hit is false then. Load errors are not cached.
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) (string, error)) (value string, hit bool, err error)

	Close() error
}

// getOrLoad is the shared miss path of both backends
func getOrLoad(ctx context.Context, c CacheInterface, key string, ttl time.Duration, load func(ctx context.Context) (string, error)) (string, bool, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}
	v, err := load(ctx)
	if err != nil {
		return "", false, err
	}
	c.Set(ctx, key, v, ttl)
	return v, false, nil
}
