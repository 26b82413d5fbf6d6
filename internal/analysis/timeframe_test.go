package analysis

import (
	"math"
	"testing"
)

func mtfAnalyzer() *MultiTimeframeAnalyzer {
	structure := NewMarketStructureAnalyzer(NewSwingPointDetector(2), 2)
	return NewMultiTimeframeAnalyzer(structure, NewAroonIndicator(14))
}

// TestAlignmentAgreement verifies that an uptrending higher timeframe
// confirms a bullish primary verdict with no penalty.
func TestAlignmentAgreement(t *testing.T) {
	m := mtfAnalyzer()
	higher := barsFromCloses(zigzagUpCloses(5, 1.0), 100)

	alignment, err := m.AnalyzeAlignment(DirectionUp, higher)
	if err != nil {
		t.Fatalf("AnalyzeAlignment returned error: %v", err)
	}
	if !alignment.Aligned {
		t.Fatal("Expected alignment on matching directions")
	}
	if alignment.HigherDirection != DirectionUp {
		t.Errorf("Expected higher direction up, got %s", alignment.HigherDirection)
	}
	if alignment.ContradictionPenalty != 0 {
		t.Errorf("Expected zero penalty, got %f", alignment.ContradictionPenalty)
	}
	if mod := m.ConfidenceModifier(alignment); mod != 1.0 {
		t.Errorf("Expected modifier 1.0 when aligned, got %f", mod)
	}
}

// TestAlignmentContradiction verifies a downtrending higher timeframe
// penalizes a bullish primary in proportion to its own strength.
func TestAlignmentContradiction(t *testing.T) {
	m := mtfAnalyzer()
	higher := barsFromCloses(zigzagDownCloses(5, 1.0), 100)

	alignment, err := m.AnalyzeAlignment(DirectionUp, higher)
	if err != nil {
		t.Fatalf("AnalyzeAlignment returned error: %v", err)
	}
	if alignment.Aligned {
		t.Fatal("Expected contradiction, got alignment")
	}
	if alignment.HigherDirection != DirectionDown {
		t.Errorf("Expected higher direction down, got %s", alignment.HigherDirection)
	}
	if alignment.ContradictionPenalty != alignment.HigherStrength {
		t.Errorf("Expected penalty to equal higher strength %f, got %f",
			alignment.HigherStrength, alignment.ContradictionPenalty)
	}
	if alignment.ContradictionPenalty <= 0 {
		t.Error("Expected a positive penalty against a trending higher timeframe")
	}

	want := 1.0 - 0.6*alignment.ContradictionPenalty
	if want < 0.2 {
		want = 0.2
	}
	if mod := m.ConfidenceModifier(alignment); math.Abs(mod-want) > 1e-9 {
		t.Errorf("Expected modifier %f, got %f", want, mod)
	}
}

// TestShouldConfirmSignal covers the hard-gate versus soft-modifier modes:
// the gate checks the higher timeframe against the signal's own direction,
// and missing higher-timeframe data fails it.
func TestShouldConfirmSignal(t *testing.T) {
	m := mtfAnalyzer()
	higherUp := &TimeframeAlignment{Aligned: true, HigherDirection: DirectionUp}
	higherDown := &TimeframeAlignment{Aligned: false, HigherDirection: DirectionDown, ContradictionPenalty: 0.8}

	cases := []struct {
		name      string
		alignment *TimeframeAlignment
		require   bool
		dir       TrendDirection
		want      bool
	}{
		{"agreeing direction required", higherUp, true, DirectionUp, true},
		{"opposing direction required", higherUp, true, DirectionDown, false},
		{"contradicted required", higherDown, true, DirectionUp, false},
		{"contradicted optional", higherDown, false, DirectionUp, true},
		{"missing data required", nil, true, DirectionUp, false},
		{"missing data optional", nil, false, DirectionUp, true},
	}
	for _, tc := range cases {
		if got := m.ShouldConfirmSignal(tc.alignment, tc.require, tc.dir); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

// TestConfidenceModifierScale checks the penalty-to-factor mapping at its
// interesting points, including the floor.
func TestConfidenceModifierScale(t *testing.T) {
	m := mtfAnalyzer()
	cases := []struct {
		penalty float64
		want    float64
	}{
		{0.5, 0.7},
		{1.0, 0.4},
	}
	for _, tc := range cases {
		alignment := &TimeframeAlignment{ContradictionPenalty: tc.penalty}
		if got := m.ConfidenceModifier(alignment); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("penalty %f: expected %f, got %f", tc.penalty, tc.want, got)
		}
	}
	if got := m.ConfidenceModifier(nil); got != 1.0 {
		t.Errorf("Expected modifier 1.0 without alignment data, got %f", got)
	}
}
