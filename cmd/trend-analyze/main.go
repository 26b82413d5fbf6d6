// trend-analyze runs a one-shot trend-change analysis from the command line
// and prints a human-readable report. Bars come from a JSON file when -bars
// is given, otherwise from the deterministic mock provider.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"trend-engine/config"
	"trend-engine/internal/engine"
	"trend-engine/internal/market"
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "symbol to analyze")
	timeframe := flag.String("timeframe", "15m", "bar timeframe")
	lookback := flag.Int("lookback", 200, "bars to analyze")
	barsPath := flag.String("bars", "", "JSON file with a bar array; empty uses synthetic data")
	sensitivity := flag.Int("sensitivity", 0, "override detection sensitivity (1-10)")
	flag.Parse()

	tf := market.Timeframe(*timeframe)
	if !market.IsValidTimeframe(tf) {
		fmt.Fprintf(os.Stderr, "unsupported timeframe %q\n", *timeframe)
		os.Exit(1)
	}

	cfg := config.DefaultTrendConfig()
	if *sensitivity > 0 {
		cfg.Sensitivity = *sensitivity
	}

	eng, err := engine.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building engine: %v\n", err)
		os.Exit(1)
	}

	bars, err := loadBars(*barsPath, *symbol, tf, *lookback)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading bars: %v\n", err)
		os.Exit(1)
	}

	result, err := eng.AnalyzeTrendChange(context.Background(), bars, *symbol, tf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	printReport(result, len(bars))
}

func loadBars(path, symbol string, tf market.Timeframe, lookback int) ([]market.Bar, error) {
	if path == "" {
		return market.NewMockProvider().GetBars(context.Background(), symbol, tf, lookback)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bars []market.Bar
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return bars, nil
}

func printReport(result *engine.Result, barCount int) {
	rule := strings.Repeat("=", 72)

	fmt.Println(rule)
	fmt.Printf("TREND ANALYSIS  %s  (%d bars)\n", result.ID, barCount)
	fmt.Println(rule)

	fmt.Printf("Primary direction:  %s\n", result.PrimaryDirection)
	fmt.Printf("Bullish score:      %.3f\n", result.BullishScore)
	fmt.Printf("Bearish score:      %.3f\n", result.BearishScore)
	fmt.Printf("Overall confidence: %.3f\n", result.OverallConfidence)

	if result.Alignment != nil {
		fmt.Printf("Higher timeframe:   %s (aligned=%v, penalty=%.2f)\n",
			result.Alignment.HigherDirection, result.Alignment.Aligned,
			result.Alignment.ContradictionPenalty)
	}
	if len(result.DegradedSources) > 0 {
		fmt.Printf("Degraded sources:   %s\n", strings.Join(result.DegradedSources, ", "))
	}

	if len(result.Signals) == 0 {
		fmt.Println("\nNo trend-change signals.")
		return
	}

	fmt.Printf("\nSignals (%d):\n", len(result.Signals))
	for _, sig := range result.Signals {
		fmt.Printf("  [%-10s] %-22s conf=%.3f level=%.4f  %s\n",
			sig.Source, sig.Type, sig.Confidence, sig.PriceLevel,
			strings.Join(sig.SupportingFactors, ","))
	}

	if len(result.Trendlines) > 0 {
		fmt.Printf("\nTracked trendlines (%d):\n", len(result.Trendlines))
		for _, line := range result.Trendlines {
			fmt.Printf("  %-10s %-14s touches=%d angle=%.1f strength=%.2f\n",
				line.Kind, line.State, line.TouchCount, line.AngleDeg, line.Strength)
		}
	}
}
