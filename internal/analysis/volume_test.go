package analysis

import (
	"math"
	"testing"
)

// TestExhaustionSpikeAtLevel verifies a volume spike striking a known level
// with a reversal bar reports exhaustion.
func TestExhaustionSpikeAtLevel(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	closes[16] = 109 // spike bar rises into the level at 110
	bars := barsFromCloses(closes, 100)
	bars[16].Volume = 300
	bars[17].Open = 109 // next bar closes back down
	bars[17].Close = 104

	va := NewVolumePatternAnalyzer(5, 2.5, 1.5)
	signal, err := va.DetectExhaustion(bars, []float64{110})
	if err != nil {
		t.Fatalf("DetectExhaustion returned error: %v", err)
	}
	if !signal.Detected {
		t.Fatal("Expected exhaustion detected")
	}
	if signal.Index != 16 {
		t.Errorf("Expected spike at index 16, got %d", signal.Index)
	}
	if signal.Level != 110 {
		t.Errorf("Expected level 110, got %f", signal.Level)
	}
	if !signal.Reversal {
		t.Error("Expected reversal: spike bar up, next bar down")
	}
	if signal.Ratio != 3.0 {
		t.Errorf("Expected volume ratio 3, got %f", signal.Ratio)
	}
	wantStrength := Clamp01(3.0/5.0 + 0.2)
	if math.Abs(signal.Strength-wantStrength) > 1e-9 {
		t.Errorf("Expected strength %f, got %f", wantStrength, signal.Strength)
	}
}

// TestExhaustionRequiresLevel verifies a spike away from every supplied
// level is ignored.
func TestExhaustionRequiresLevel(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	bars := barsFromCloses(closes, 100)
	bars[16].Volume = 300

	va := NewVolumePatternAnalyzer(5, 2.5, 1.5)
	signal, err := va.DetectExhaustion(bars, []float64{150})
	if err != nil {
		t.Fatalf("DetectExhaustion returned error: %v", err)
	}
	if signal.Detected {
		t.Error("Expected no exhaustion away from the levels")
	}
}

// TestBreakoutVolumeConfirmation verifies the break-bar volume ratio against
// the breakout factor.
func TestBreakoutVolumeConfirmation(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	bars := barsFromCloses(closes, 100)
	bars[15].Volume = 200

	va := NewVolumePatternAnalyzer(5, 2.5, 1.5)
	confirmation, err := va.AnalyzeBreakout(bars, 15)
	if err != nil {
		t.Fatalf("AnalyzeBreakout returned error: %v", err)
	}
	if !confirmation.Confirmed {
		t.Error("Expected 2x average volume to confirm")
	}
	if confirmation.Ratio != 2.0 {
		t.Errorf("Expected ratio 2, got %f", confirmation.Ratio)
	}

	weak, err := va.AnalyzeBreakout(bars, 10)
	if err != nil {
		t.Fatalf("AnalyzeBreakout returned error: %v", err)
	}
	if weak.Confirmed {
		t.Error("Expected flat volume to leave the break unconfirmed")
	}
	if weak.Ratio != 1.0 {
		t.Errorf("Expected ratio 1, got %f", weak.Ratio)
	}
}

// TestVolumeDivergenceBearish verifies a fresh price high on a fading
// volume average reports bearish volume divergence.
func TestVolumeDivergenceBearish(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 + float64(i) // last close above every first-half high
	}
	bars := barsFromCloses(closes, 0)
	for i := range bars {
		if i < 5 {
			bars[i].Volume = 200
		} else {
			bars[i].Volume = 100
		}
	}

	va := NewVolumePatternAnalyzer(5, 2.5, 1.5)
	divergence, err := va.DetectVolumeDivergence(bars)
	if err != nil {
		t.Fatalf("DetectVolumeDivergence returned error: %v", err)
	}
	if !divergence.Detected {
		t.Fatal("Expected divergence detected")
	}
	if divergence.Kind != DivergenceBearish {
		t.Errorf("Expected bearish, got %s", divergence.Kind)
	}
	if math.Abs(divergence.Strength-0.5) > 1e-9 {
		t.Errorf("Expected strength 0.5, got %f", divergence.Strength)
	}
}

// TestVolumeDivergenceNone verifies steady volume under a rising price
// reports nothing.
func TestVolumeDivergenceNone(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	bars := barsFromCloses(closes, 100)

	va := NewVolumePatternAnalyzer(5, 2.5, 1.5)
	divergence, err := va.DetectVolumeDivergence(bars)
	if err != nil {
		t.Fatalf("DetectVolumeDivergence returned error: %v", err)
	}
	if divergence.Detected {
		t.Error("Expected no divergence on steady volume")
	}
}
