package market

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BarCache stores bar series keyed by symbol/timeframe/limit.
type BarCache interface {
	Get(ctx context.Context, key string) []Bar
	Set(ctx context.Context, key string, bars []Bar, ttl time.Duration)
}

func cacheKey(symbol string, timeframe Timeframe, limit int) string {
	return fmt.Sprintf("%s:%s:%d", symbol, timeframe, limit)
}

// cacheTTL returns a TTL proportional to the timeframe so lower intervals
// refresh more often.
func cacheTTL(timeframe Timeframe) time.Duration {
	switch timeframe {
	case TF1m:
		return 30 * time.Second
	case TF5m:
		return 2 * time.Minute
	case TF15m:
		return 5 * time.Minute
	case TF1h:
		return 30 * time.Minute
	case TF4h:
		return 2 * time.Hour
	case TF1d:
		return 12 * time.Hour
	default:
		return time.Minute
	}
}

// MemoryCache is an in-process TTL cache for bar series.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]*cacheEntry
}

type cacheEntry struct {
	bars      []Bar
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory bar cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]*cacheEntry)}
}

// Get returns the cached bars for key, or nil if absent or expired.
func (c *MemoryCache) Get(_ context.Context, key string) []Bar {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.bars
}

// Set stores bars under key with the given TTL.
func (c *MemoryCache) Set(_ context.Context, key string, bars []Bar, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		bars:      bars,
		expiresAt: time.Now().Add(ttl),
	}
}

// Prune removes expired entries.
func (c *MemoryCache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiresAt) {
			delete(c.data, key)
		}
	}
}
