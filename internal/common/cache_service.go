package common

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CacheService keeps entries in process memory. Used when no Redis is
// configured, so every instance has its own view.
type CacheService struct {
	store *cache.Cache
}

var _ CacheInterface = (*CacheService)(nil)

// NewCacheService creates an in-memory cache. Expired entries are swept
// every cleanupInterval.
func NewCacheService(defaultTTL, cleanupInterval time.Duration) *CacheService {
	return &CacheService{store: cache.New(defaultTTL, cleanupInterval)}
}

func (cs *CacheService) Get(_ context.Context, key string) (string, bool) {
	v, ok := cs.store.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (cs *CacheService) Set(_ context.Context, key string, value string, ttl time.Duration) {
	cs.store.Set(key, value, ttl)
}

func (cs *CacheService) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		cs.store.Delete(k)
	}
}

func (cs *CacheService) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) (string, error)) (string, bool, error) {
	return getOrLoad(ctx, cs, key, ttl, load)
}

// Close is a no-op
func (cs *CacheService) Close() error {
	return nil
}
