package common

import (
	"context"
	"time"

	"caretransport/dispatch/internal/config"
	"caretransport/dispatch/internal/logging"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the Redis instance named by cfg. A failed ping
// is logged and the client still returned; the pool reconnects on its own.
func NewRedisClient(cfg *config.Config) *redis.Client {
	addr := cfg.RedisAddr()
	logging.Info("Initializing Redis client", "addr", addr, "db", cfg.RedisDB)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logging.Error("Failed to ping Redis", "addr", addr, "error", err.Error())
		return client
	}

	logging.Info("Connected to Redis", "addr", addr)
	return client
}

// NewCache returns the cache backend selected by cfg.CacheBackend
func NewCache(cfg *config.Config, client *redis.Client) CacheInterface {
	if cfg.CacheBackend == "redis" && client != nil {
		return NewRedisCacheService(client, "dispatch:")
	}
	return NewCacheService(cfg.AvailabilityCacheTTL, 2*cfg.AvailabilityCacheTTL)
}
