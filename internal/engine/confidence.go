package engine

import (
	"trend-engine/internal/analysis"
)

// additiveSources are the analyzers that contribute weighted additive terms
// to the fused confidence. The multi-timeframe analyzer is a multiplicative
// modifier, never an additive term.
var additiveSources = []analysis.Source{
	analysis.SourceStructure,
	analysis.SourceDivergence,
	analysis.SourceAroon,
	analysis.SourceTrendline,
	analysis.SourceVolume,
}

// calculateTrendConfidence fuses per-source signals into directional scores.
// Each source contributes its strongest same-direction signal weighted by
// the configured source weight; the sum is normalized by the total
// configured weight so missing or degraded sources dilute confidence rather
// than inflate it. The multi-timeframe modifier is applied multiplicatively
// at the end.
func calculateTrendConfidence(signals []analysis.TrendSignal, weights map[string]float64, modifier float64) (bullish, bearish float64) {
	totalWeight := 0.0
	for _, source := range additiveSources {
		totalWeight += weights[string(source)]
	}
	if totalWeight == 0 {
		return 0, 0
	}

	// Strongest contribution per source and direction; iteration follows the
	// fixed source order so results are deterministic.
	best := make(map[analysis.Source][2]float64, len(additiveSources))
	for _, sig := range signals {
		entry := best[sig.Source]
		switch sig.Type {
		case analysis.SignalBullishTrendChange:
			if sig.Confidence > entry[0] {
				entry[0] = sig.Confidence
			}
		case analysis.SignalBearishTrendChange:
			if sig.Confidence > entry[1] {
				entry[1] = sig.Confidence
			}
		}
		best[sig.Source] = entry
	}

	for _, source := range additiveSources {
		w := weights[string(source)]
		entry := best[source]
		bullish += w * entry[0]
		bearish += w * entry[1]
	}

	bullish = analysis.Clamp01(bullish / totalWeight * modifier)
	bearish = analysis.Clamp01(bearish / totalWeight * modifier)
	return bullish, bearish
}
