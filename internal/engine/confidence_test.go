package engine

import (
	"math"
	"testing"

	"trend-engine/internal/analysis"
)

var testWeights = map[string]float64{
	"structure":  0.30,
	"divergence": 0.25,
	"aroon":      0.15,
	"trendline":  0.15,
	"volume":     0.10,
}

// TestConfidenceWeightedSum verifies the weighted fusion arithmetic with the
// default weights, which deliberately sum below one.
func TestConfidenceWeightedSum(t *testing.T) {
	signals := []analysis.TrendSignal{
		{Type: analysis.SignalBullishTrendChange, Source: analysis.SourceStructure, Confidence: 0.8},
		{Type: analysis.SignalBullishTrendChange, Source: analysis.SourceAroon, Confidence: 0.5},
	}

	bullish, bearish := calculateTrendConfidence(signals, testWeights, 1.0)
	want := (0.30*0.8 + 0.15*0.5) / 0.95
	if math.Abs(bullish-want) > 1e-9 {
		t.Errorf("Expected bullish %f, got %f", want, bullish)
	}
	if bearish != 0 {
		t.Errorf("Expected zero bearish score, got %f", bearish)
	}
}

// TestConfidenceBestPerSource verifies only the strongest same-direction
// signal per source contributes.
func TestConfidenceBestPerSource(t *testing.T) {
	signals := []analysis.TrendSignal{
		{Type: analysis.SignalBearishTrendChange, Source: analysis.SourceDivergence, Confidence: 0.4},
		{Type: analysis.SignalBearishTrendChange, Source: analysis.SourceDivergence, Confidence: 0.9},
		{Type: analysis.SignalBearishTrendChange, Source: analysis.SourceDivergence, Confidence: 0.6},
	}

	_, bearish := calculateTrendConfidence(signals, testWeights, 1.0)
	want := 0.25 * 0.9 / 0.95
	if math.Abs(bearish-want) > 1e-9 {
		t.Errorf("Expected bearish %f, got %f", want, bearish)
	}
}

// TestConfidenceOpposingSignals verifies bullish and bearish scores are
// accumulated independently, never netted.
func TestConfidenceOpposingSignals(t *testing.T) {
	signals := []analysis.TrendSignal{
		{Type: analysis.SignalBullishTrendChange, Source: analysis.SourceStructure, Confidence: 1.0},
		{Type: analysis.SignalBearishTrendChange, Source: analysis.SourceVolume, Confidence: 1.0},
	}

	bullish, bearish := calculateTrendConfidence(signals, testWeights, 1.0)
	if math.Abs(bullish-0.30/0.95) > 1e-9 {
		t.Errorf("Expected bullish %f, got %f", 0.30/0.95, bullish)
	}
	if math.Abs(bearish-0.10/0.95) > 1e-9 {
		t.Errorf("Expected bearish %f, got %f", 0.10/0.95, bearish)
	}
}

// TestConfidenceModifierApplied verifies the multi-timeframe factor scales
// both directions multiplicatively.
func TestConfidenceModifierApplied(t *testing.T) {
	signals := []analysis.TrendSignal{
		{Type: analysis.SignalBullishTrendChange, Source: analysis.SourceStructure, Confidence: 0.8},
	}

	full, _ := calculateTrendConfidence(signals, testWeights, 1.0)
	halved, _ := calculateTrendConfidence(signals, testWeights, 0.5)
	if math.Abs(halved-full*0.5) > 1e-9 {
		t.Errorf("Expected modifier to halve confidence: full %f, halved %f", full, halved)
	}
}

// TestConfidenceNoWeights verifies an all-zero weight table yields zero
// scores instead of dividing by zero.
func TestConfidenceNoWeights(t *testing.T) {
	signals := []analysis.TrendSignal{
		{Type: analysis.SignalBullishTrendChange, Source: analysis.SourceStructure, Confidence: 0.8},
	}
	bullish, bearish := calculateTrendConfidence(signals, map[string]float64{}, 1.0)
	if bullish != 0 || bearish != 0 {
		t.Errorf("Expected zero scores with no weights, got %f/%f", bullish, bearish)
	}
}
