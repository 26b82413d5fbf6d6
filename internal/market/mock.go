package market

import (
	"context"
	"math"
)

// MockProvider generates deterministic synthetic bar series for offline mode
// and tests. The same (symbol, timeframe, limit) always yields the same bars,
// so engine results are reproducible.
type MockProvider struct {
	basePrices map[string]float64
}

// NewMockProvider creates a mock provider with realistic base prices.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		basePrices: map[string]float64{
			"BTCUSDT": 104500.00,
			"ETHUSDT": 3900.00,
			"BNBUSDT": 710.00,
			"SOLUSDT": 220.00,
			"XRPUSDT": 2.35,
		},
	}
}

// GetBars returns a synthetic trending series with cyclical swings.
func (m *MockProvider) GetBars(_ context.Context, symbol string, timeframe Timeframe, limit int) ([]Bar, error) {
	base, ok := m.basePrices[symbol]
	if !ok {
		base = 100.0
	}

	interval := timeframe.Duration().Milliseconds()
	// Anchor at a fixed epoch so repeated calls are identical.
	start := int64(1700000000000) - int64(limit)*interval

	bars := make([]Bar, limit)
	for i := 0; i < limit; i++ {
		// Gentle uptrend with a sine-wave swing structure; amplitude scales
		// with the base price so swings register at any symbol.
		drift := base * 0.0004 * float64(i)
		cycle := base * 0.01 * math.Sin(float64(i)/6.0)
		open := base + drift + cycle
		close := base + drift + base*0.01*math.Sin(float64(i+1)/6.0)

		high := math.Max(open, close) + base*0.002
		low := math.Min(open, close) - base*0.002
		volume := 1000 + 400*math.Sin(float64(i)/9.0)

		bars[i] = Bar{
			OpenTime:  start + int64(i)*interval,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: start + int64(i+1)*interval - 1,
		}
	}

	return bars, nil
}
