package analysis

import (
	"math"

	"trend-engine/internal/market"
)

// VolumeConfirmation reports whether break-bar volume backed a breakout.
type VolumeConfirmation struct {
	Confirmed bool    `json:"confirmed"`
	Ratio     float64 `json:"ratio"` // break-bar volume / trailing average
	Strength  float64 `json:"strength"`
}

// ExhaustionSignal flags a volume spike at a significant level, a candidate
// for trend exhaustion.
type ExhaustionSignal struct {
	Detected  bool    `json:"detected"`
	Index     int     `json:"index"`
	Timestamp int64   `json:"timestamp"`
	Ratio     float64 `json:"ratio"`
	Level     float64 `json:"level"`    // the support/resistance level struck
	Reversal  bool    `json:"reversal"` // followed by a reversal bar
	Strength  float64 `json:"strength"`
}

// VolumeDivergence flags price making new extremes while the volume moving
// average trends the opposite way.
type VolumeDivergence struct {
	Detected bool           `json:"detected"`
	Kind     DivergenceKind `json:"kind"`
	Strength float64        `json:"strength"`
}

// VolumePatternAnalyzer detects exhaustion, breakout confirmation and
// volume-price divergence.
type VolumePatternAnalyzer struct {
	avgPeriod      int
	spikeFactor    float64 // volume multiple flagged as exhaustion
	breakoutFactor float64 // volume multiple confirming a breakout
	levelTolerance float64 // fraction of price counted as "at" a level
	recentBars     int     // bars scanned for exhaustion spikes
}

// NewVolumePatternAnalyzer creates an analyzer. spikeFactor and
// breakoutFactor default to 2.5 and 1.5 when zero.
func NewVolumePatternAnalyzer(avgPeriod int, spikeFactor, breakoutFactor float64) *VolumePatternAnalyzer {
	if avgPeriod <= 0 {
		avgPeriod = DefaultVolumePeriod
	}
	if spikeFactor <= 0 {
		spikeFactor = 2.5
	}
	if breakoutFactor <= 0 {
		breakoutFactor = 1.5
	}
	return &VolumePatternAnalyzer{
		avgPeriod:      avgPeriod,
		spikeFactor:    spikeFactor,
		breakoutFactor: breakoutFactor,
		levelTolerance: 0.005,
		recentBars:     10,
	}
}

// DetectExhaustion scans the most recent bars for a volume spike occurring
// at one of the supplied support/resistance levels, scoring higher when the
// next bar reverses.
func (va *VolumePatternAnalyzer) DetectExhaustion(bars []market.Bar, levels []float64) (*ExhaustionSignal, error) {
	if len(bars) < va.avgPeriod+2 {
		return nil, insufficientData("volume", va.avgPeriod+2, len(bars))
	}

	start := len(bars) - va.recentBars
	if start < va.avgPeriod {
		start = va.avgPeriod
	}

	for i := len(bars) - 1; i >= start; i-- {
		avg := AverageVolumeBefore(bars, i, va.avgPeriod)
		if avg == 0 {
			return nil, degenerate("volume", "zero trailing volume average")
		}

		ratio := bars[i].Volume / avg
		if ratio < va.spikeFactor {
			continue
		}

		level, atLevel := va.nearestLevel(bars[i], levels)
		if !atLevel {
			continue
		}

		reversal := false
		if i+1 < len(bars) {
			spikeUp := bars[i].Close > bars[i].Open
			nextDown := bars[i+1].Close < bars[i+1].Open
			reversal = spikeUp == nextDown // direction flipped after the spike
		}

		strength := math.Min(ratio/(va.spikeFactor*2), 1.0)
		if reversal {
			strength = Clamp01(strength + 0.2)
		}

		return &ExhaustionSignal{
			Detected:  true,
			Index:     i,
			Timestamp: bars[i].OpenTime,
			Ratio:     ratio,
			Level:     level,
			Reversal:  reversal,
			Strength:  strength,
		}, nil
	}

	return &ExhaustionSignal{}, nil
}

// nearestLevel reports the closest supplied level touched by the bar.
func (va *VolumePatternAnalyzer) nearestLevel(bar market.Bar, levels []float64) (float64, bool) {
	for _, level := range levels {
		if level <= 0 {
			continue
		}
		if math.Abs(bar.High-level)/level <= va.levelTolerance ||
			math.Abs(bar.Low-level)/level <= va.levelTolerance {
			return level, true
		}
	}
	return 0, false
}

// AnalyzeBreakout checks whether the bar at breakIndex carried enough volume
// to confirm a structure or trendline break. Missing confirmation reduces a
// signal's confidence downstream but never zeroes it.
func (va *VolumePatternAnalyzer) AnalyzeBreakout(bars []market.Bar, breakIndex int) (*VolumeConfirmation, error) {
	if breakIndex <= 0 || breakIndex >= len(bars) {
		return nil, insufficientData("volume", breakIndex+1, len(bars))
	}

	avg := AverageVolumeBefore(bars, breakIndex, va.avgPeriod)
	if avg == 0 {
		return nil, degenerate("volume", "zero trailing volume average")
	}

	ratio := bars[breakIndex].Volume / avg
	return &VolumeConfirmation{
		Confirmed: ratio >= va.breakoutFactor,
		Ratio:     ratio,
		Strength:  math.Min(ratio/(va.breakoutFactor*2), 1.0),
	}, nil
}

// DetectVolumeDivergence flags price pushing to new extremes while the
// volume moving average slopes the other way.
func (va *VolumePatternAnalyzer) DetectVolumeDivergence(bars []market.Bar) (*VolumeDivergence, error) {
	window := va.avgPeriod * 2
	if len(bars) < window {
		return nil, insufficientData("volume", window, len(bars))
	}

	recent := bars[len(bars)-window:]
	half := window / 2

	firstVol := 0.0
	secondVol := 0.0
	for i := 0; i < half; i++ {
		firstVol += recent[i].Volume
	}
	for i := half; i < window; i++ {
		secondVol += recent[i].Volume
	}
	firstVol /= float64(half)
	secondVol /= float64(window - half)

	if firstVol == 0 {
		return nil, degenerate("volume", "zero first-half volume average")
	}

	volFalling := secondVol < firstVol*0.8
	volSlope := (secondVol - firstVol) / firstVol

	// New price extreme in the second half?
	newHigh, newLow := true, true
	lastClose := recent[window-1].Close
	for i := 0; i < half; i++ {
		if recent[i].High >= lastClose {
			newHigh = false
		}
		if recent[i].Low <= lastClose {
			newLow = false
		}
	}

	switch {
	case newHigh && volFalling:
		return &VolumeDivergence{
			Detected: true,
			Kind:     DivergenceBearish,
			Strength: Clamp01(math.Abs(volSlope)),
		}, nil
	case newLow && volFalling:
		return &VolumeDivergence{
			Detected: true,
			Kind:     DivergenceBullish,
			Strength: Clamp01(math.Abs(volSlope)),
		}, nil
	default:
		return &VolumeDivergence{}, nil
	}
}
