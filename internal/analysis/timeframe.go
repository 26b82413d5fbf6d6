package analysis

import (
	"trend-engine/internal/market"
)

// TimeframeAlignment compares the primary-timeframe verdict against the
// higher timeframe's independently computed direction.
type TimeframeAlignment struct {
	PrimaryDirection     TrendDirection `json:"primary_direction"`
	HigherDirection      TrendDirection `json:"higher_direction"`
	HigherStrength       float64        `json:"higher_strength"`
	Aligned              bool           `json:"aligned"`
	ContradictionPenalty float64        `json:"contradiction_penalty"`
}

// MultiTimeframeAnalyzer evaluates a higher-timeframe bar series with the
// same structure and Aroon logic used on the primary timeframe and scores
// agreement between the two.
type MultiTimeframeAnalyzer struct {
	structure *MarketStructureAnalyzer
	aroon     *AroonIndicator
}

// NewMultiTimeframeAnalyzer creates an analyzer reusing the given structure
// and Aroon components at reduced granularity.
func NewMultiTimeframeAnalyzer(structure *MarketStructureAnalyzer, aroon *AroonIndicator) *MultiTimeframeAnalyzer {
	return &MultiTimeframeAnalyzer{structure: structure, aroon: aroon}
}

// AnalyzeAlignment computes the higher timeframe's direction and compares it
// to the primary verdict. On disagreement the contradiction penalty is
// proportional to the higher timeframe's own trend strength: a strongly
// trending higher timeframe that contradicts the signal penalizes confidence
// more than a weak one.
func (m *MultiTimeframeAnalyzer) AnalyzeAlignment(primary TrendDirection, higherBars []market.Bar) (*TimeframeAlignment, error) {
	higherDir, structStrength, err := m.structure.AnalyzeDirection(higherBars)
	if err != nil {
		return nil, err
	}

	strength := structStrength
	if aroon, err := m.aroon.Calculate(higherBars); err == nil {
		// Blend structure and oscillator strength when both are available.
		strength = Clamp01(0.6*structStrength + 0.4*aroon.TrendStrength)

		if higherDir == DirectionSideways {
			// Structure is inconclusive; let a decisive oscillator vote.
			switch {
			case aroon.Oscillator >= 50:
				higherDir = DirectionUp
			case aroon.Oscillator <= -50:
				higherDir = DirectionDown
			}
		}
	}

	alignment := &TimeframeAlignment{
		PrimaryDirection: primary,
		HigherDirection:  higherDir,
		HigherStrength:   strength,
	}

	switch {
	case higherDir == primary:
		alignment.Aligned = true
	case higherDir == DirectionSideways:
		// A flat higher timeframe neither confirms nor contradicts.
		alignment.ContradictionPenalty = Clamp01(0.2 * strength)
	default:
		alignment.ContradictionPenalty = Clamp01(strength)
	}

	return alignment, nil
}

// ShouldConfirmSignal applies the configured gating mode: when alignment is
// required the higher timeframe must point in the signal's direction for it
// to be accepted at all; otherwise alignment only modifies confidence.
func (m *MultiTimeframeAnalyzer) ShouldConfirmSignal(alignment *TimeframeAlignment, requireAlignment bool, want TrendDirection) bool {
	if alignment == nil {
		// Higher-timeframe data unavailable; the hard gate cannot pass.
		return !requireAlignment
	}
	if requireAlignment {
		return alignment.HigherDirection == want
	}
	return true
}

// ConfidenceModifier converts the alignment into the multiplicative factor
// applied to the fused confidence. Agreement leaves confidence intact;
// contradiction scales it down in proportion to the penalty.
func (m *MultiTimeframeAnalyzer) ConfidenceModifier(alignment *TimeframeAlignment) float64 {
	if alignment == nil {
		return 1.0
	}
	if alignment.Aligned {
		return 1.0
	}
	factor := 1.0 - 0.6*alignment.ContradictionPenalty
	if factor < 0.2 {
		factor = 0.2
	}
	return factor
}
