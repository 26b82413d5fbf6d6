// Redis-backed bar cache for sharing fetched series between instances.
// When Redis is unavailable the cache degrades to the in-memory fallback so
// analysis continues without interruption.
package market

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const barCacheKeyPrefix = "trend:bars:"

// RedisCache stores bar series in Redis with an in-memory fallback.
type RedisCache struct {
	client   *redis.Client
	fallback *MemoryCache
}

// NewRedisCache connects to Redis at addr. The returned cache is usable even
// if the server is unreachable; operations silently fall back to memory.
func NewRedisCache(addr, password string, db int) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		client:   client,
		fallback: NewMemoryCache(),
	}
}

// Ping verifies connectivity to the Redis server.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the cached bars for key, or nil on miss or Redis failure.
func (c *RedisCache) Get(ctx context.Context, key string) []Bar {
	payload, err := c.client.Get(ctx, barCacheKeyPrefix+key).Bytes()
	if err != nil {
		return c.fallback.Get(ctx, key)
	}

	var bars []Bar
	if err := json.Unmarshal(payload, &bars); err != nil {
		return nil
	}
	return bars
}

// Set stores bars under key with the given TTL in both Redis and the
// in-memory fallback.
func (c *RedisCache) Set(ctx context.Context, key string, bars []Bar, ttl time.Duration) {
	c.fallback.Set(ctx, key, bars, ttl)

	payload, err := json.Marshal(bars)
	if err != nil {
		return
	}
	c.client.Set(ctx, barCacheKeyPrefix+key, payload, ttl)
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
