package analysis

import (
	"math"

	"trend-engine/internal/market"
)

// BreakKind classifies a break of market structure.
type BreakKind int

const (
	BreakHigherHigh BreakKind = iota
	BreakLowerLow
	BreakSupport
	BreakResistance
)

func (k BreakKind) String() string {
	switch k {
	case BreakHigherHigh:
		return "higher_high"
	case BreakLowerLow:
		return "lower_low"
	case BreakSupport:
		return "support_break"
	case BreakResistance:
		return "resistance_break"
	default:
		return "unknown"
	}
}

// Bullish reports whether the break argues for a bullish trend change.
func (k BreakKind) Bullish() bool {
	return k == BreakHigherHigh || k == BreakResistance
}

// StructureBreakResult describes a breach of established market structure.
type StructureBreakResult struct {
	Kind            BreakKind `json:"kind"`
	BreakLevel      float64   `json:"break_level"`
	PreviousLevel   float64   `json:"previous_level"`
	BreakIndex      int       `json:"break_index"`
	Timestamp       int64     `json:"timestamp"`
	VolumeConfirmed bool      `json:"volume_confirmed"`
	Strength        float64   `json:"strength"`
	Confirmed       bool      `json:"confirmed"`
}

// MarketStructureAnalyzer tracks the sequence of swing highs and lows to
// classify trend direction and detect breaks of structure.
type MarketStructureAnalyzer struct {
	detector          *SwingPointDetector
	followThroughBars int
	magnitudeWeight   float64
	volumeWeight      float64
	volumeFactor      float64 // break-bar volume vs trailing average for confirmation
	levelTolerance    float64 // clustering tolerance as a fraction of price
}

// NewMarketStructureAnalyzer creates an analyzer. followThroughBars is the
// number of closes beyond the break level required before a break is
// reported confirmed.
func NewMarketStructureAnalyzer(detector *SwingPointDetector, followThroughBars int) *MarketStructureAnalyzer {
	if followThroughBars <= 0 {
		followThroughBars = 2
	}
	return &MarketStructureAnalyzer{
		detector:          detector,
		followThroughBars: followThroughBars,
		magnitudeWeight:   0.6,
		volumeWeight:      0.4,
		volumeFactor:      1.5,
		levelTolerance:    0.01,
	}
}

// SetWeights overrides the magnitude/volume weighting used by the strength
// calculation. Weights are re-normalized to sum to 1.
func (a *MarketStructureAnalyzer) SetWeights(magnitude, volume float64) {
	total := magnitude + volume
	if total <= 0 {
		return
	}
	a.magnitudeWeight = magnitude / total
	a.volumeWeight = volume / total
}

// Direction classifies the trend from the two most recent confirmed swing
// highs and lows: rising lows and highs mean up, falling highs and lows mean
// down, anything else is sideways. The returned strength is the share of
// swing transitions agreeing with the direction.
func (a *MarketStructureAnalyzer) Direction(points []SwingPoint) (TrendDirection, float64) {
	highs, lows := Split(points)
	if len(highs) < 2 || len(lows) < 2 {
		return DirectionSideways, 0
	}

	h1, h2 := highs[len(highs)-2], highs[len(highs)-1]
	l1, l2 := lows[len(lows)-2], lows[len(lows)-1]

	var direction TrendDirection
	switch {
	case h2.Price > h1.Price && l2.Price > l1.Price:
		direction = DirectionUp
	case h2.Price < h1.Price && l2.Price < l1.Price:
		direction = DirectionDown
	default:
		return DirectionSideways, 0.3
	}

	return direction, a.directionStrength(direction, highs, lows)
}

// directionStrength counts how many swing transitions across the full window
// agree with the classified direction.
func (a *MarketStructureAnalyzer) directionStrength(direction TrendDirection, highs, lows []SwingPoint) float64 {
	agree, total := 0, 0

	count := func(points []SwingPoint) {
		for i := 1; i < len(points); i++ {
			total++
			rising := points[i].Price > points[i-1].Price
			if (direction == DirectionUp && rising) || (direction == DirectionDown && !rising) {
				agree++
			}
		}
	}
	count(highs)
	count(lows)

	if total == 0 {
		return 0
	}
	return Clamp01(float64(agree) / float64(total))
}

// AnalyzeDirection runs swing detection on bars and classifies the trend.
func (a *MarketStructureAnalyzer) AnalyzeDirection(bars []market.Bar) (TrendDirection, float64, error) {
	minBars := a.detector.Window()*4 + 1
	if len(bars) < minBars {
		return DirectionSideways, 0, insufficientData("structure", minBars, len(bars))
	}

	points := a.detector.Detect(bars)
	highs, lows := Split(points)
	if len(highs) < 2 || len(lows) < 2 {
		return DirectionSideways, 0, insufficientData("structure", 2, min(len(highs), len(lows)))
	}

	direction, strength := a.Direction(points)
	return direction, strength, nil
}

// DetectStructureBreak looks for price breaching the most recent significant
// same-type extreme against the established direction. Returns nil when no
// break is present.
func (a *MarketStructureAnalyzer) DetectStructureBreak(bars []market.Bar, ind *Indicators) (*StructureBreakResult, error) {
	minBars := a.detector.Window()*4 + 1
	if len(bars) < minBars {
		return nil, insufficientData("structure", minBars, len(bars))
	}
	if ind == nil || ind.ATR == 0 {
		return nil, degenerate("structure", "missing indicator snapshot")
	}

	points := a.detector.Detect(bars)
	highs, lows := Split(points)
	if len(highs) < 2 || len(lows) < 2 {
		return nil, insufficientData("structure", 2, min(len(highs), len(lows)))
	}

	direction, _ := a.Direction(points)

	switch direction {
	case DirectionUp:
		// A new low below the last swing low breaks the uptrend.
		last := lows[len(lows)-1]
		prev := lows[len(lows)-2]
		return a.scanBreak(bars, ind, BreakLowerLow, last.Price, prev.Price, last.Index+1, false), nil
	case DirectionDown:
		last := highs[len(highs)-1]
		prev := highs[len(highs)-2]
		return a.scanBreak(bars, ind, BreakHigherHigh, last.Price, prev.Price, last.Index+1, true), nil
	default:
		return a.detectRangeBreak(bars, ind, highs, lows), nil
	}
}

// scanBreak finds the first close beyond level starting at from and scores it.
func (a *MarketStructureAnalyzer) scanBreak(bars []market.Bar, ind *Indicators, kind BreakKind, level, prevLevel float64, from int, upward bool) *StructureBreakResult {
	for i := from; i < len(bars); i++ {
		broke := (upward && bars[i].Close > level) || (!upward && bars[i].Close < level)
		if !broke {
			continue
		}
		return a.scoreBreak(bars, ind, kind, level, prevLevel, i, upward)
	}
	return nil
}

func (a *MarketStructureAnalyzer) scoreBreak(bars []market.Bar, ind *Indicators, kind BreakKind, level, prevLevel float64, breakIndex int, upward bool) *StructureBreakResult {
	breakBar := bars[breakIndex]

	breach := math.Abs(breakBar.Close-level) / ind.ATR
	magnitudeScore := math.Min(breach, 1.0)

	volRatio := 0.0
	if avg := AverageVolumeBefore(bars, breakIndex, DefaultVolumePeriod); avg > 0 {
		volRatio = breakBar.Volume / avg
	}
	volumeScore := math.Min(volRatio/2.0, 1.0)

	// Follow-through: closes beyond the level after the break bar.
	followThrough := 0
	for i := breakIndex + 1; i < len(bars); i++ {
		beyond := (upward && bars[i].Close > level) || (!upward && bars[i].Close < level)
		if beyond {
			followThrough++
		}
	}

	return &StructureBreakResult{
		Kind:            kind,
		BreakLevel:      level,
		PreviousLevel:   prevLevel,
		BreakIndex:      breakIndex,
		Timestamp:       breakBar.OpenTime,
		VolumeConfirmed: volRatio >= a.volumeFactor,
		Strength:        Clamp01(a.magnitudeWeight*magnitudeScore + a.volumeWeight*volumeScore),
		Confirmed:       followThrough >= a.followThroughBars,
	}
}

// detectRangeBreak handles the sideways case: a close through a clustered
// support or resistance level on the latest bar.
func (a *MarketStructureAnalyzer) detectRangeBreak(bars []market.Bar, ind *Indicators, highs, lows []SwingPoint) *StructureBreakResult {
	if len(bars) < 2 {
		return nil
	}

	supports := ClusterLevels(lows, a.levelTolerance)
	resistances := ClusterLevels(highs, a.levelTolerance)

	last := bars[len(bars)-1]
	prev := bars[len(bars)-2]

	for _, s := range supports {
		if prev.Close >= s && last.Close < s {
			return a.scoreBreak(bars, ind, BreakSupport, s, s, len(bars)-1, false)
		}
	}
	for _, r := range resistances {
		if prev.Close <= r && last.Close > r {
			return a.scoreBreak(bars, ind, BreakResistance, r, r, len(bars)-1, true)
		}
	}
	return nil
}

// ClusterLevels merges swing point prices lying within tolerance of each
// other into averaged support/resistance levels.
func ClusterLevels(points []SwingPoint, tolerance float64) []float64 {
	var levels []float64
	for _, p := range points {
		merged := false
		for i, level := range levels {
			if math.Abs(p.Price-level)/level < tolerance {
				levels[i] = (level + p.Price) / 2
				merged = true
				break
			}
		}
		if !merged {
			levels = append(levels, p.Price)
		}
	}
	return levels
}
