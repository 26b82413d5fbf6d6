package engine

import (
	"testing"

	"trend-engine/internal/analysis"
)

func testLine(id string, strength float64, anchorTime int64, state analysis.TrendlineState) *analysis.Trendline {
	return &analysis.Trendline{
		ID:       id,
		Symbol:   "BTCUSDT",
		Strength: strength,
		State:    state,
		AnchorB:  analysis.SwingPoint{Timestamp: anchorTime},
	}
}

// TestRegistryPrunesTerminalLines verifies finished lifecycles never occupy
// registry slots.
func TestRegistryPrunesTerminalLines(t *testing.T) {
	r := NewRegistry(10)
	r.WithSymbol("BTCUSDT", func(existing []*analysis.Trendline) []*analysis.Trendline {
		return []*analysis.Trendline{
			testLine("a", 0.5, 100, analysis.StateValidated),
			testLine("b", 0.9, 200, analysis.StateConfirmed),
			testLine("c", 0.9, 300, analysis.StateInvalidated),
			testLine("d", 0.4, 400, analysis.StateBroken),
		}
	})

	lines := r.Lines("BTCUSDT")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 surviving lines, got %d", len(lines))
	}
	for _, line := range lines {
		if line.State.Terminal() {
			t.Errorf("Terminal line %s survived pruning", line.ID)
		}
	}
}

// TestRegistryEvictsWeakestFirst verifies the cap evicts by ascending
// strength, breaking ties against the older anchor.
func TestRegistryEvictsWeakestFirst(t *testing.T) {
	r := NewRegistry(2)
	r.WithSymbol("BTCUSDT", func(existing []*analysis.Trendline) []*analysis.Trendline {
		return []*analysis.Trendline{
			testLine("weak", 0.3, 100, analysis.StateValidated),
			testLine("old", 0.7, 100, analysis.StateValidated),
			testLine("new", 0.7, 200, analysis.StateValidated),
		}
	})

	lines := r.Lines("BTCUSDT")
	if len(lines) != 2 {
		t.Fatalf("Expected cap of 2, got %d lines", len(lines))
	}
	ids := map[string]bool{}
	for _, line := range lines {
		ids[line.ID] = true
	}
	if ids["weak"] {
		t.Error("Expected the weakest line evicted first")
	}
	if !ids["new"] || !ids["old"] {
		t.Errorf("Expected the two strongest lines kept, got %v", ids)
	}

	r2 := NewRegistry(1)
	r2.WithSymbol("BTCUSDT", func(existing []*analysis.Trendline) []*analysis.Trendline {
		return []*analysis.Trendline{
			testLine("old", 0.7, 100, analysis.StateValidated),
			testLine("new", 0.7, 200, analysis.StateValidated),
		}
	})
	kept := r2.Lines("BTCUSDT")
	if len(kept) != 1 || kept[0].ID != "new" {
		t.Errorf("Expected the newer anchor kept on a strength tie, got %v", kept)
	}
}

// TestRegistrySymbolIsolation verifies symbols hold independent line sets.
func TestRegistrySymbolIsolation(t *testing.T) {
	r := NewRegistry(10)
	r.WithSymbol("BTCUSDT", func(existing []*analysis.Trendline) []*analysis.Trendline {
		return []*analysis.Trendline{testLine("a", 0.5, 100, analysis.StateValidated)}
	})

	if r.Size("ETHUSDT") != 0 {
		t.Error("Expected an untouched symbol to be empty")
	}
	if r.Size("BTCUSDT") != 1 {
		t.Errorf("Expected 1 line for BTCUSDT, got %d", r.Size("BTCUSDT"))
	}
}
