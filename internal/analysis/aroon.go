package analysis

import (
	"math"

	"trend-engine/internal/market"
)

// AroonCross classifies the oscillator's signal at the latest bar.
type AroonCross int

const (
	AroonNone AroonCross = iota
	AroonBullishCross
	AroonBearishCross
	AroonConsolidation
)

func (c AroonCross) String() string {
	switch c {
	case AroonBullishCross:
		return "bullish_cross"
	case AroonBearishCross:
		return "bearish_cross"
	case AroonConsolidation:
		return "consolidation"
	default:
		return "none"
	}
}

// AroonSignal holds the oscillator state at the latest bar.
type AroonSignal struct {
	Up            float64    `json:"aroon_up"`         // [0,100]
	Down          float64    `json:"aroon_down"`       // [0,100]
	Oscillator    float64    `json:"oscillator"`       // Up - Down, [-100,100]
	Signal        AroonCross `json:"signal"`
	TrendStrength float64    `json:"trend_strength"` // |oscillator| / 100
}

// AroonIndicator computes a bounded trend-strength oscillator from the
// recency of price extremes: aroon_up = 100 * (p - barsSinceHighestHigh) / p,
// aroon_down symmetric for the lowest low.
type AroonIndicator struct {
	period int
}

// NewAroonIndicator creates an indicator with the given period.
func NewAroonIndicator(period int) *AroonIndicator {
	if period <= 0 {
		period = 25
	}
	return &AroonIndicator{period: period}
}

// Period returns the configured lookback period.
func (a *AroonIndicator) Period() int {
	return a.period
}

// Calculate evaluates the oscillator at the latest bar. Crosses are detected
// by comparing against the values one bar earlier, so the window must cover
// period+2 bars.
func (a *AroonIndicator) Calculate(bars []market.Bar) (*AroonSignal, error) {
	minBars := a.period + 2
	if len(bars) < minBars {
		return nil, insufficientData("aroon", minBars, len(bars))
	}

	up, down := a.values(bars, len(bars)-1)
	prevUp, prevDown := a.values(bars, len(bars)-2)

	signal := AroonNone
	switch {
	case prevUp <= prevDown && up > down:
		signal = AroonBullishCross
	case prevUp >= prevDown && up < down:
		signal = AroonBearishCross
	case up < 50 && down < 50:
		signal = AroonConsolidation
	}

	oscillator := up - down
	return &AroonSignal{
		Up:            up,
		Down:          down,
		Oscillator:    oscillator,
		Signal:        signal,
		TrendStrength: Clamp01(math.Abs(oscillator) / 100.0),
	}, nil
}

// Extremes returns the highest high and lowest low over the trailing
// period+1 bars, the price levels the oscillator anchors on.
func (a *AroonIndicator) Extremes(bars []market.Bar) (high, low float64, ok bool) {
	if len(bars) < a.period+1 {
		return 0, 0, false
	}

	start := len(bars) - a.period - 1
	high, low = bars[start].High, bars[start].Low
	for i := start + 1; i < len(bars); i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low, true
}

// values computes aroon up/down at bar index end over the trailing window of
// period+1 bars ending there.
func (a *AroonIndicator) values(bars []market.Bar, end int) (up, down float64) {
	start := end - a.period
	highIdx, lowIdx := start, start
	for i := start; i <= end; i++ {
		if bars[i].High >= bars[highIdx].High {
			highIdx = i
		}
		if bars[i].Low <= bars[lowIdx].Low {
			lowIdx = i
		}
	}

	barsSinceHigh := float64(end - highIdx)
	barsSinceLow := float64(end - lowIdx)
	p := float64(a.period)

	up = 100.0 * (p - barsSinceHigh) / p
	down = 100.0 * (p - barsSinceLow) / p
	return up, down
}
