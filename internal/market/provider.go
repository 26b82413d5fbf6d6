package market

import "context"

// BarProvider supplies ordered bar series for a symbol and timeframe.
// Implementations must return bars sorted by open time ascending. Gaps in the
// series are tolerated by consumers; providers do not need to backfill.
type BarProvider interface {
	GetBars(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]Bar, error)
}

// ProviderFunc adapts a plain function to the BarProvider interface.
type ProviderFunc func(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]Bar, error)

// GetBars calls f.
func (f ProviderFunc) GetBars(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]Bar, error) {
	return f(ctx, symbol, timeframe, limit)
}

// CachedProvider wraps a BarProvider with a BarCache. Cache misses fall
// through to the underlying provider and populate the cache with a TTL
// appropriate for the timeframe.
type CachedProvider struct {
	inner BarProvider
	cache BarCache
}

// NewCachedProvider wraps inner with cache.
func NewCachedProvider(inner BarProvider, cache BarCache) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache}
}

// GetBars fetches bars, preferring the cache.
func (p *CachedProvider) GetBars(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]Bar, error) {
	key := cacheKey(symbol, timeframe, limit)
	if bars := p.cache.Get(ctx, key); bars != nil {
		return bars, nil
	}

	bars, err := p.inner.GetBars(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	p.cache.Set(ctx, key, bars, cacheTTL(timeframe))
	return bars, nil
}
