package analysis

import (
	"math"

	"trend-engine/internal/market"
)

// DivergenceKind classifies a price/indicator disagreement.
type DivergenceKind int

const (
	DivergenceBullish DivergenceKind = iota
	DivergenceBearish
)

func (k DivergenceKind) String() string {
	if k == DivergenceBullish {
		return "bullish"
	}
	return "bearish"
}

// DivergenceIndicator identifies the momentum indicator compared against
// price.
type DivergenceIndicator int

const (
	IndicatorRSI DivergenceIndicator = iota
	IndicatorMACD
)

func (i DivergenceIndicator) String() string {
	if i == IndicatorRSI {
		return "rsi"
	}
	return "macd"
}

// DivergenceResult describes one detected divergence between price swings
// and an indicator's values at the same bars.
type DivergenceResult struct {
	Kind       DivergenceKind      `json:"kind"`
	Indicator  DivergenceIndicator `json:"indicator"`
	PriceFirst SwingPoint          `json:"price_first"`
	PriceLast  SwingPoint          `json:"price_last"`
	IndFirst   float64             `json:"indicator_first"`
	IndLast    float64             `json:"indicator_last"`
	Strength   float64             `json:"strength"`
	Validated  bool                `json:"validated"` // >= minSwingPairs agreeing pairs
}

// DivergenceDetector compares price swings against RSI and MACD swings to
// find regular bullish/bearish divergence.
type DivergenceDetector struct {
	detector      *SwingPointDetector
	minSwingPairs int
	lookback      int // bars considered when validating across pairs
}

// NewDivergenceDetector creates a detector. minSwingPairs is the number of
// independent agreeing swing pairs required before a divergence is reported
// validated.
func NewDivergenceDetector(detector *SwingPointDetector, minSwingPairs, lookback int) *DivergenceDetector {
	if minSwingPairs <= 0 {
		minSwingPairs = 2
	}
	if lookback <= 0 {
		lookback = 100
	}
	return &DivergenceDetector{
		detector:      detector,
		minSwingPairs: minSwingPairs,
		lookback:      lookback,
	}
}

// DetectRSI finds RSI divergences in the bar window.
func (d *DivergenceDetector) DetectRSI(bars []market.Bar, ind *Indicators) ([]*DivergenceResult, error) {
	if ind == nil {
		return nil, degenerate("divergence", "missing indicator snapshot")
	}
	return d.detect(bars, ind.RSI, IndicatorRSI, ind.ATR)
}

// DetectMACD finds MACD-line divergences in the bar window.
func (d *DivergenceDetector) DetectMACD(bars []market.Bar, ind *Indicators) ([]*DivergenceResult, error) {
	if ind == nil {
		return nil, degenerate("divergence", "missing indicator snapshot")
	}
	return d.detect(bars, ind.MACD, IndicatorMACD, ind.ATR)
}

func (d *DivergenceDetector) detect(bars []market.Bar, series []float64, indicator DivergenceIndicator, atr float64) ([]*DivergenceResult, error) {
	minBars := d.detector.Window()*4 + 1
	if len(bars) < minBars {
		return nil, insufficientData("divergence", minBars, len(bars))
	}
	if atr == 0 {
		return nil, degenerate("divergence", "zero average true range")
	}

	indVol := StdDev(series, min(d.lookback, len(series)))
	if indVol == 0 {
		return nil, degenerate("divergence", "zero indicator variance")
	}

	highs, lows := Split(d.detector.Detect(bars))

	var results []*DivergenceResult
	if r := d.checkSide(highs, series, indicator, DivergenceBearish, atr, indVol, len(bars)); r != nil {
		results = append(results, r)
	}
	if r := d.checkSide(lows, series, indicator, DivergenceBullish, atr, indVol, len(bars)); r != nil {
		results = append(results, r)
	}
	return results, nil
}

// checkSide examines the two most recent same-kind swings for divergence and
// validates across earlier non-overlapping pairs within the lookback.
func (d *DivergenceDetector) checkSide(points []SwingPoint, series []float64, indicator DivergenceIndicator, kind DivergenceKind, atr, indVol float64, barCount int) *DivergenceResult {
	if len(points) < 2 {
		return nil
	}

	first, last := points[len(points)-2], points[len(points)-1]
	if !divergent(kind, first, last, series) {
		return nil
	}

	// Count independent agreeing pairs walking backwards in steps of two so
	// pairs never share a swing point.
	agreeing := 0
	cutoff := barCount - d.lookback
	for i := len(points) - 1; i >= 1; i -= 2 {
		a, b := points[i-1], points[i]
		if a.Index < cutoff {
			break
		}
		if divergent(kind, a, b, series) {
			agreeing++
		}
	}

	priceScore := math.Min(math.Abs(last.Price-first.Price)/(2*atr), 1.0)
	indScore := math.Min(math.Abs(series[last.Index]-series[first.Index])/(2*indVol), 1.0)

	return &DivergenceResult{
		Kind:       kind,
		Indicator:  indicator,
		PriceFirst: first,
		PriceLast:  last,
		IndFirst:   series[first.Index],
		IndLast:    series[last.Index],
		Strength:   Clamp01(priceScore * indScore),
		Validated:  agreeing >= d.minSwingPairs,
	}
}

// divergent reports whether the pair (a, b) shows the given divergence:
// bearish when price makes a higher high while the indicator makes a lower
// high, bullish mirrored on the low side.
func divergent(kind DivergenceKind, a, b SwingPoint, series []float64) bool {
	if b.Index >= len(series) || a.Index >= len(series) {
		return false
	}
	switch kind {
	case DivergenceBearish:
		return b.Price > a.Price && series[b.Index] < series[a.Index]
	case DivergenceBullish:
		return b.Price < a.Price && series[b.Index] > series[a.Index]
	default:
		return false
	}
}
