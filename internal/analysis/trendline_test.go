package analysis

import (
	"math"
	"reflect"
	"testing"

	"trend-engine/internal/market"
)

func trendlineTestAnalyzer(retestWindow, confirmBars int) *TrendlineAnalyzer {
	return NewTrendlineAnalyzer(NewSwingPointDetector(2), TrendlineParams{
		MinTouches:       3,
		AngleMinDeg:      10,
		AngleMaxDeg:      80,
		RetestWindowBars: retestWindow,
		ConfirmBars:      confirmBars,
	})
}

// findLine locates the line anchored at the given bar indexes.
func findLine(lines []*Trendline, aIdx, bIdx int) *Trendline {
	for _, line := range lines {
		if line.AnchorA.Index == aIdx && line.AnchorB.Index == bIdx && line.Kind == LineSupport {
			return line
		}
	}
	return nil
}

// appendBars extends a series with closes and per-bar volumes.
func appendBars(bars []market.Bar, closes []float64, volumes []float64) []market.Bar {
	out := append([]market.Bar(nil), bars...)
	for i, c := range closes {
		idx := len(out)
		out = append(out, market.Bar{
			OpenTime:  int64(idx) * testBarInterval,
			Open:      out[idx-1].Close,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    volumes[i],
			CloseTime: int64(idx+1)*testBarInterval - 1,
		})
	}
	return out
}

// TestTrendlineValidation verifies a support line through collinear rising
// troughs collects its touches and promotes to validated, with the angle
// inside the configured band.
func TestTrendlineValidation(t *testing.T) {
	bars := barsFromCloses(zigzagUpCloses(6, 1.0), 100)
	ind, err := ComputeIndicators(bars)
	if err != nil {
		t.Fatalf("ComputeIndicators: %v", err)
	}

	ta := trendlineTestAnalyzer(10, 2)
	lines, breaks, err := ta.Analyze("BTCUSDT", bars, ind, nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if len(breaks) != 0 {
		t.Fatalf("Expected no breaks in a clean uptrend, got %d", len(breaks))
	}

	line := findLine(lines, 6, 12)
	if line == nil {
		t.Fatal("Expected a support line anchored at troughs 6 and 12")
	}
	if line.State != StateValidated {
		t.Errorf("Expected validated, got %s", line.State)
	}
	if line.TouchCount < 3 {
		t.Errorf("Expected at least 3 touches, got %d", line.TouchCount)
	}
	if line.Slope != 1.0 {
		t.Errorf("Expected slope 1.0, got %f", line.Slope)
	}
	wantAngle := math.Atan(1.0/ind.ATR) * 180.0 / math.Pi
	if math.Abs(line.AngleDeg-wantAngle) > 1e-9 {
		t.Errorf("Expected angle %f, got %f", wantAngle, line.AngleDeg)
	}
	if line.AngleDeg <= 10 || line.AngleDeg >= 80 {
		t.Errorf("Angle %f outside the configured band", line.AngleDeg)
	}
}

// TestTrendlineShallowAngleDiscarded verifies candidates outside the angle
// band are dropped at fit time and never tracked.
func TestTrendlineShallowAngleDiscarded(t *testing.T) {
	bars := barsFromCloses(zigzagUpCloses(6, 0.05), 100)
	ind, err := ComputeIndicators(bars)
	if err != nil {
		t.Fatalf("ComputeIndicators: %v", err)
	}

	ta := trendlineTestAnalyzer(10, 2)
	lines, _, err := ta.Analyze("BTCUSDT", bars, ind, nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("Expected near-flat lines discarded, got %d tracked", len(lines))
	}
}

// TestTrendlineBreakRetestConfirm drives the full lifecycle in one window:
// validation, a volume-backed break, the retest and its confirmation.
func TestTrendlineBreakRetestConfirm(t *testing.T) {
	base := barsFromCloses(zigzagUpCloses(6, 1.0), 100)
	// Line through troughs 6 and 12 runs at value(i) = 99 + i: the break bar
	// at index 37 closes 3 below it on a volume spike, the next bar's high
	// re-enters the band, then two closes hold below the level.
	bars := appendBars(base,
		[]float64{133, 134.5, 133.5, 133},
		[]float64{400, 100, 100, 100},
	)
	ind, err := ComputeIndicators(bars)
	if err != nil {
		t.Fatalf("ComputeIndicators: %v", err)
	}

	ta := trendlineTestAnalyzer(10, 2)
	lines, breaks, err := ta.Analyze("BTCUSDT", bars, ind, nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	line := findLine(lines, 6, 12)
	if line == nil {
		t.Fatal("Expected the support line to be tracked")
	}
	if line.State != StateConfirmed {
		t.Fatalf("Expected confirmed after break and held retest, got %s", line.State)
	}
	if line.BreakLevel != 136 {
		t.Errorf("Expected break at line value 136, got %f", line.BreakLevel)
	}
	if line.BreakTime != bars[37].OpenTime {
		t.Errorf("Expected break time of bar 37, got %d", line.BreakTime)
	}

	var br *TrendlineBreak
	for _, b := range breaks {
		if b.Line == line {
			br = b
		}
	}
	if br == nil {
		t.Fatal("Expected a break record for the line")
	}
	if br.BreakIndex != 37 {
		t.Errorf("Expected break index 37, got %d", br.BreakIndex)
	}
	if !br.VolumeConfirmed {
		t.Error("Break on 4x volume should be volume confirmed")
	}
	if br.Strength <= 0 || br.Strength > 1 {
		t.Errorf("Break strength out of range: %f", br.Strength)
	}
}

// TestTrendlineBreakReportedEveryCall verifies break reports are derived
// from line state: re-analyzing the same window with the tracked lines
// returns the same breaks as the call that detected the transition.
func TestTrendlineBreakReportedEveryCall(t *testing.T) {
	base := barsFromCloses(zigzagUpCloses(6, 1.0), 100)
	// Break at 37 on a volume spike, then a drifting bar with no retest.
	bars := appendBars(base,
		[]float64{133, 130},
		[]float64{400, 100},
	)
	ind, err := ComputeIndicators(bars)
	if err != nil {
		t.Fatalf("ComputeIndicators: %v", err)
	}

	ta := trendlineTestAnalyzer(10, 2)
	lines, breaks, err := ta.Analyze("BTCUSDT", bars, ind, nil)
	if err != nil {
		t.Fatalf("First Analyze returned error: %v", err)
	}
	if len(breaks) == 0 {
		t.Fatal("Expected breaks from the first pass")
	}
	if line := findLine(lines, 6, 12); line == nil || line.State != StateBroken {
		t.Fatalf("Expected the support line broken, got %+v", line)
	}

	again, breaksAgain, err := ta.Analyze("BTCUSDT", bars, ind, lines)
	if err != nil {
		t.Fatalf("Second Analyze returned error: %v", err)
	}
	if !reflect.DeepEqual(lines, again) {
		t.Error("Re-analysis of the same window changed the tracked lines")
	}
	if !reflect.DeepEqual(breaks, breaksAgain) {
		t.Errorf("Re-analysis of the same window changed the break set: %d then %d",
			len(breaks), len(breaksAgain))
	}
}

// TestTrendlineRetestRejectionInvalidates verifies a close back through the
// broken level during the retest invalidates the line.
func TestTrendlineRetestRejectionInvalidates(t *testing.T) {
	base := barsFromCloses(zigzagUpCloses(6, 1.0), 100)
	// Break at 37, retest touch at 38, then a close back above the level.
	bars := appendBars(base,
		[]float64{133, 134.5, 139},
		[]float64{400, 100, 100},
	)
	ind, err := ComputeIndicators(bars)
	if err != nil {
		t.Fatalf("ComputeIndicators: %v", err)
	}

	ta := trendlineTestAnalyzer(10, 2)
	lines, _, err := ta.Analyze("BTCUSDT", bars, ind, nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	line := findLine(lines, 6, 12)
	if line == nil {
		t.Fatal("Expected the support line to be tracked")
	}
	if line.State != StateInvalidated {
		t.Errorf("Expected invalidated after the recross, got %s", line.State)
	}
}

// TestTrendlineRetestExpiryInvalidates verifies a break with no retest
// inside the window invalidates once the deadline passes.
func TestTrendlineRetestExpiryInvalidates(t *testing.T) {
	base := barsFromCloses(zigzagUpCloses(6, 1.0), 100)
	// Break at 37 then a steep slide with highs far below the level.
	bars := appendBars(base,
		[]float64{133, 130, 127, 124, 121, 118},
		[]float64{400, 100, 100, 100, 100, 100},
	)
	ind, err := ComputeIndicators(bars)
	if err != nil {
		t.Fatalf("ComputeIndicators: %v", err)
	}

	ta := trendlineTestAnalyzer(3, 2)
	lines, _, err := ta.Analyze("BTCUSDT", bars, ind, nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	line := findLine(lines, 6, 12)
	if line == nil {
		t.Fatal("Expected the support line to be tracked")
	}
	if line.State != StateInvalidated {
		t.Errorf("Expected invalidated after the retest window expired, got %s", line.State)
	}
}

// TestTrendlineSurvivesWindowShift verifies a tracked line rebases onto a
// shifted bar window by anchor timestamps and keeps advancing its lifecycle.
func TestTrendlineSurvivesWindowShift(t *testing.T) {
	base := barsFromCloses(zigzagUpCloses(6, 1.0), 100)
	full := appendBars(base,
		[]float64{133, 134.5, 133.5, 133},
		[]float64{400, 100, 100, 100},
	)

	first := full[:37] // the clean uptrend
	ind, err := ComputeIndicators(first)
	if err != nil {
		t.Fatalf("ComputeIndicators: %v", err)
	}

	ta := trendlineTestAnalyzer(10, 2)
	lines, _, err := ta.Analyze("BTCUSDT", first, ind, nil)
	if err != nil {
		t.Fatalf("First Analyze returned error: %v", err)
	}
	tracked := findLine(lines, 6, 12)
	if tracked == nil || tracked.State != StateValidated {
		t.Fatalf("Expected a validated line after the first window, got %+v", tracked)
	}
	id := tracked.ID

	// Second call: the window slid forward six bars and now includes the
	// break and retest.
	second := full[6:]
	ind2, err := ComputeIndicators(second)
	if err != nil {
		t.Fatalf("ComputeIndicators: %v", err)
	}
	lines2, breaks, err := ta.Analyze("BTCUSDT", second, ind2, lines)
	if err != nil {
		t.Fatalf("Second Analyze returned error: %v", err)
	}

	var survived *Trendline
	for _, line := range lines2 {
		if line.ID == id {
			survived = line
		}
	}
	if survived == nil {
		t.Fatal("Expected the line to survive the window shift")
	}
	if survived.AnchorA.Index != 0 || survived.AnchorB.Index != 6 {
		t.Errorf("Expected rebased anchors (0, 6), got (%d, %d)",
			survived.AnchorA.Index, survived.AnchorB.Index)
	}
	if survived.State != StateConfirmed {
		t.Errorf("Expected confirmed in the shifted window, got %s", survived.State)
	}

	found := false
	for _, b := range breaks {
		if b.Line.ID == id {
			found = true
		}
	}
	if !found {
		t.Error("Expected the shifted window to report the line's break")
	}
}
