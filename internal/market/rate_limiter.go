package market

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter tracks weight-based API usage the way Binance meters it:
// every request consumes a weight and the budget resets each minute.
// Acquire blocks until budget is available or the context is cancelled.
type RateLimiter struct {
	mu sync.Mutex

	currentWeight int
	weightResetAt time.Time
	maxWeight     int
}

const defaultMaxWeight = 1200 // spot API weight budget per minute

// NewRateLimiter creates a limiter with the default per-minute budget.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		maxWeight:     defaultMaxWeight,
		weightResetAt: time.Now().Add(time.Minute),
	}
}

// Acquire reserves weight for a request, waiting out the reset window when
// the budget is exhausted.
func (rl *RateLimiter) Acquire(ctx context.Context, weight int) error {
	if weight <= 0 {
		return fmt.Errorf("invalid request weight %d", weight)
	}

	for {
		rl.mu.Lock()
		now := time.Now()
		if now.After(rl.weightResetAt) {
			rl.currentWeight = 0
			rl.weightResetAt = now.Add(time.Minute)
		}
		if rl.currentWeight+weight <= rl.maxWeight {
			rl.currentWeight += weight
			rl.mu.Unlock()
			return nil
		}
		wait := time.Until(rl.weightResetAt)
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Usage returns the fraction of the per-minute budget currently consumed.
func (rl *RateLimiter) Usage() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Now().After(rl.weightResetAt) {
		return 0
	}
	return float64(rl.currentWeight) / float64(rl.maxWeight)
}
