// Package scanner runs the periodic multi-symbol scan loop that feeds bar
// series into the trend engine and publishes accepted signals.
package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trend-engine/config"
	"trend-engine/internal/engine"
	"trend-engine/internal/events"
	"trend-engine/internal/market"
)

// symbolBudget bounds one symbol's analysis, fetch excluded.
const symbolBudget = 100 * time.Millisecond

// SymbolResult is the outcome of analyzing one symbol in a scan cycle.
type SymbolResult struct {
	Symbol            string    `json:"symbol"`
	Timeframe         string    `json:"timeframe"`
	OverallConfidence float64   `json:"overall_confidence"`
	PrimaryDirection  string    `json:"primary_direction"`
	SignalCount       int       `json:"signal_count"`
	DegradedSources   []string  `json:"degraded_sources,omitempty"`
	EvaluatedAt       time.Time `json:"evaluated_at"`
	Error             string    `json:"error,omitempty"`
}

// ScanResult aggregates one full scan cycle.
type ScanResult struct {
	ScanID         string         `json:"scan_id"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Duration       time.Duration  `json:"duration"`
	SymbolsScanned int            `json:"symbols_scanned"`
	SignalsFound   int            `json:"signals_found"`
	Results        []SymbolResult `json:"results"`
}

// Scanner drives the engine across a symbol watchlist on a fixed interval
// using a bounded worker pool.
type Scanner struct {
	engine   *engine.Engine
	provider market.BarProvider
	bus      *events.Bus
	cfg      config.ScannerConfig
	log      zerolog.Logger

	stopChan   chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	lastResult *ScanResult
}

// New creates a scanner. The provider supplies the bars analyzed at the
// configured timeframe.
func New(eng *engine.Engine, provider market.BarProvider, bus *events.Bus, cfg config.ScannerConfig, log zerolog.Logger) *Scanner {
	return &Scanner{
		engine:   eng,
		provider: provider,
		bus:      bus,
		cfg:      cfg,
		log:      log.With().Str("component", "scanner").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start begins the background scan loop.
func (sc *Scanner) Start() {
	if !sc.cfg.Enabled {
		sc.log.Info().Msg("scanner disabled")
		return
	}
	sc.wg.Add(1)
	go sc.run()
	sc.log.Info().
		Int("symbols", len(sc.cfg.Symbols)).
		Str("timeframe", sc.cfg.Timeframe).
		Int("interval_s", sc.cfg.ScanInterval).
		Msg("scanner started")
}

func (sc *Scanner) run() {
	defer sc.wg.Done()

	interval := time.Duration(sc.cfg.ScanInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sc.scan()

	for {
		select {
		case <-ticker.C:
			sc.scan()
		case <-sc.stopChan:
			sc.log.Info().Msg("scanner stopped")
			return
		}
	}
}

// Scan triggers a single cycle outside the schedule.
func (sc *Scanner) Scan() {
	sc.scan()
}

func (sc *Scanner) scan() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	scanID := uuid.NewString()
	timeframe := market.Timeframe(sc.cfg.Timeframe)

	symbolChan := make(chan string, len(sc.cfg.Symbols))
	resultChan := make(chan SymbolResult, len(sc.cfg.Symbols))

	var wg sync.WaitGroup
	for i := 0; i < sc.cfg.WorkerCount; i++ {
		wg.Add(1)
		go sc.worker(ctx, timeframe, symbolChan, resultChan, &wg)
	}

	for _, symbol := range sc.cfg.Symbols {
		symbolChan <- symbol
	}
	close(symbolChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var results []SymbolResult
	signals := 0
	for r := range resultChan {
		signals += r.SignalCount
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].OverallConfidence != results[j].OverallConfidence {
			return results[i].OverallConfidence > results[j].OverallConfidence
		}
		return results[i].Symbol < results[j].Symbol
	})

	scanResult := &ScanResult{
		ScanID:         scanID,
		StartTime:      start,
		EndTime:        time.Now(),
		Duration:       time.Since(start),
		SymbolsScanned: len(sc.cfg.Symbols),
		SignalsFound:   signals,
		Results:        results,
	}

	sc.mu.Lock()
	sc.lastResult = scanResult
	sc.mu.Unlock()

	if sc.bus != nil {
		sc.bus.PublishScanCompleted(scanID, scanResult.SymbolsScanned, signals, scanResult.Duration)
	}
	sc.log.Info().
		Str("scan_id", scanID).
		Dur("took", scanResult.Duration).
		Int("signals", signals).
		Msg("scan completed")
}

func (sc *Scanner) worker(ctx context.Context, timeframe market.Timeframe, symbolChan <-chan string, resultChan chan<- SymbolResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for symbol := range symbolChan {
		select {
		case <-ctx.Done():
			return
		default:
			resultChan <- sc.scanSymbol(ctx, symbol, timeframe)
		}
	}
}

func (sc *Scanner) scanSymbol(ctx context.Context, symbol string, timeframe market.Timeframe) SymbolResult {
	out := SymbolResult{
		Symbol:      symbol,
		Timeframe:   string(timeframe),
		EvaluatedAt: time.Now(),
	}

	bars, err := sc.provider.GetBars(ctx, symbol, timeframe, sc.cfg.Lookback)
	if err != nil {
		sc.log.Warn().Str("symbol", symbol).Err(err).Msg("bar fetch failed")
		out.Error = err.Error()
		return out
	}

	analyzeCtx, cancel := context.WithTimeout(ctx, symbolBudget)
	defer cancel()

	result, err := sc.engine.AnalyzeTrendChange(analyzeCtx, bars, symbol, timeframe)
	if err != nil {
		sc.log.Warn().Str("symbol", symbol).Err(err).Msg("analysis failed")
		out.Error = err.Error()
		return out
	}

	out.OverallConfidence = result.OverallConfidence
	out.PrimaryDirection = result.PrimaryDirection.String()
	out.SignalCount = len(result.Signals)
	out.DegradedSources = result.DegradedSources
	return out
}

// LastResult returns the most recent completed scan, or nil before the
// first cycle finishes.
func (sc *Scanner) LastResult() *ScanResult {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastResult
}

// Stop shuts the loop down and waits for the in-flight scan.
func (sc *Scanner) Stop() {
	close(sc.stopChan)
	sc.wg.Wait()
}
