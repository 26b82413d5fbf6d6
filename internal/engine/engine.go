package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trend-engine/config"
	"trend-engine/internal/analysis"
	"trend-engine/internal/events"
	"trend-engine/internal/market"
	"trend-engine/internal/monitoring"
)

// Sink receives non-fatal per-analyzer computation issues. The engine never
// aborts an analysis for an individual analyzer failure; it reports the
// omission here and continues.
type Sink interface {
	Log(level, source, message string)
}

type nopSink struct{}

func (nopSink) Log(string, string, string) {}

// ErrEmptyBars is returned for a malformed top-level input.
var ErrEmptyBars = errors.New("empty bar series")

// Engine orchestrates the analyzers, fuses their signals into a weighted
// confidence score, and owns the per-symbol trendline registry. Analyses of
// different symbols are safe to run concurrently.
type Engine struct {
	cfg      config.TrendConfig
	log      Sink
	higher   market.BarProvider
	bus      *events.Bus
	registry *Registry

	swing      *analysis.SwingPointDetector
	structure  *analysis.MarketStructureAnalyzer
	divergence *analysis.DivergenceDetector
	aroon      *analysis.AroonIndicator
	trendline  *analysis.TrendlineAnalyzer
	volume     *analysis.VolumePatternAnalyzer
	mtf        *analysis.MultiTimeframeAnalyzer
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithLogger sets the sink for per-analyzer computation issues.
func WithLogger(sink Sink) Option {
	return func(e *Engine) { e.log = sink }
}

// WithHigherTimeframeProvider supplies the bar provider used for
// multi-timeframe confirmation. Without one, the multi-timeframe source is
// reported degraded.
func WithHigherTimeframeProvider(p market.BarProvider) Option {
	return func(e *Engine) { e.higher = p }
}

// WithEventBus publishes detected and accepted signals on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// New validates cfg and builds an engine. Configuration errors are fatal
// here, never per call.
func New(cfg config.TrendConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	swing := analysis.NewSwingPointDetector(cfg.EffectiveSwingWindow())

	e := &Engine{
		cfg:        cfg,
		log:        nopSink{},
		registry:   NewRegistry(cfg.TrendlineMaxActive),
		swing:      swing,
		structure:  analysis.NewMarketStructureAnalyzer(swing, cfg.StructureFollowThroughBars),
		divergence: analysis.NewDivergenceDetector(swing, cfg.DivergenceMinSwingPairs, cfg.DivergenceLookback),
		aroon:      analysis.NewAroonIndicator(cfg.AroonPeriod),
		trendline: analysis.NewTrendlineAnalyzer(swing, analysis.TrendlineParams{
			MinTouches:       cfg.TrendlineMinTouches,
			AngleMinDeg:      cfg.TrendlineAngleMinDeg,
			AngleMaxDeg:      cfg.TrendlineAngleMaxDeg,
			RetestWindowBars: cfg.RetestWindowBars,
			ConfirmBars:      cfg.RetestConfirmBars,
		}),
		volume: analysis.NewVolumePatternAnalyzer(analysis.DefaultVolumePeriod, cfg.VolumeSpikeFactor, cfg.VolumeBreakoutFactor),
	}
	e.structure.SetWeights(cfg.StructureMagnitudeWeight, cfg.StructureVolumeWeight)
	e.mtf = analysis.NewMultiTimeframeAnalyzer(e.structure, e.aroon)

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Registry exposes the trendline registry, mainly for inspection endpoints.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// degradedSet collects the sources omitted from one fusion pass. Entries
// are emitted in the fixed source order regardless of which goroutine
// reported first, keeping repeated runs identical.
type degradedSet struct {
	mu      sync.Mutex
	sources map[analysis.Source]bool
}

func (d *degradedSet) add(source analysis.Source) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sources == nil {
		d.sources = make(map[analysis.Source]bool)
	}
	d.sources[source] = true
}

func (d *degradedSet) ordered() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, source := range analysis.KnownSources {
		if d.sources[source] {
			out = append(out, string(source))
		}
	}
	return out
}

// guard runs one analyzer step, converting errors and panics into a
// degraded contribution. A single analyzer failure never aborts the call.
func (e *Engine) guard(symbol string, source analysis.Source, deg *degradedSet, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.noteFailure(symbol, source, deg, fmt.Sprintf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		e.noteFailure(symbol, source, deg, err.Error())
	}
}

func (e *Engine) noteFailure(symbol string, source analysis.Source, deg *degradedSet, reason string) {
	deg.add(source)
	e.log.Log("warn", string(source), reason)
	monitoring.RecordAnalyzerFailure(string(source))
	if e.bus != nil {
		e.bus.PublishAnalyzerDegraded(symbol, string(source), reason)
	}
}

// AnalyzeTrendChange runs every analyzer over bars and fuses their signals.
// It always returns a well-formed result when the input is non-empty;
// analyzers that cannot compute are listed in DegradedSources and omitted
// from fusion. Repeated calls with identical inputs and registry state
// produce identical results.
func (e *Engine) AnalyzeTrendChange(ctx context.Context, bars []market.Bar, symbol string, timeframe market.Timeframe) (*Result, error) {
	if len(bars) == 0 {
		return nil, ErrEmptyBars
	}

	start := time.Now()
	defer func() {
		monitoring.ObserveAnalysis(symbol, time.Since(start))
	}()

	result := &Result{
		ID:     fmt.Sprintf("%s-%s-%d", symbol, timeframe, bars[len(bars)-1].CloseTime),
		Symbol: symbol,
	}
	if !e.cfg.UseTrendDetection {
		return result, nil
	}

	deg := &degradedSet{}

	// Base indicators are computed once per call and shared by every
	// analyzer; a failure here degrades the analyzers that need them.
	ind, err := analysis.ComputeIndicators(bars)
	if err != nil {
		e.log.Log("warn", "indicators", err.Error())
	}

	var (
		primaryDir   analysis.TrendDirection
		structBreak  *analysis.StructureBreakResult
		divergences  []*analysis.DivergenceResult
		aroonSig     *analysis.AroonSignal
		lineSnapshot []*analysis.Trendline
		lineBreaks   []*analysis.TrendlineBreak
	)

	// The structurally independent analyzers run concurrently; none mutates
	// shared state beyond the per-symbol registry slot, which takes its own
	// lock inside the trendline step.
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		e.guard(symbol, analysis.SourceStructure, deg, func() error {
			dir, _, err := e.structure.AnalyzeDirection(bars)
			if err != nil {
				return err
			}
			primaryDir = dir
			sb, err := e.structure.DetectStructureBreak(bars, ind)
			if err != nil {
				return err
			}
			structBreak = sb
			return nil
		})
	}()

	go func() {
		defer wg.Done()
		e.guard(symbol, analysis.SourceDivergence, deg, func() error {
			rsi, err := e.divergence.DetectRSI(bars, ind)
			if err != nil {
				return err
			}
			macd, err := e.divergence.DetectMACD(bars, ind)
			if err != nil {
				return err
			}
			divergences = append(rsi, macd...)
			return nil
		})
	}()

	go func() {
		defer wg.Done()
		e.guard(symbol, analysis.SourceAroon, deg, func() error {
			sig, err := e.aroon.Calculate(bars)
			if err != nil {
				return err
			}
			aroonSig = sig
			return nil
		})
	}()

	go func() {
		defer wg.Done()
		e.guard(symbol, analysis.SourceTrendline, deg, func() error {
			var analyzeErr error
			e.registry.WithSymbol(symbol, func(existing []*analysis.Trendline) []*analysis.Trendline {
				lines, breaks, err := e.trendline.Analyze(symbol, bars, ind, existing)
				if err != nil {
					analyzeErr = err
					return existing
				}
				lineSnapshot = lines
				lineBreaks = breaks
				return lines
			})
			return analyzeErr
		})
	}()

	wg.Wait()

	result.PrimaryDirection = primaryDir
	result.StructureBreak = structBreak
	result.Divergences = divergences
	result.Aroon = aroonSig
	result.Trendlines = lineSnapshot
	result.TrendlineBreaks = lineBreaks

	// Retests resolved within this window mark their break confirmed.
	for _, br := range lineBreaks {
		br.RetestConfirmed = br.Line.State == analysis.StateConfirmed
	}

	// The volume analyzer consumes the structure and trendline outputs, so
	// it runs after them.
	e.guard(symbol, analysis.SourceVolume, deg, func() error {
		return e.runVolume(result, bars)
	})

	// Multi-timeframe confirmation needs the primary verdict and a series
	// from the configured higher timeframe.
	if higherTF, ok := e.cfg.HigherTimeframe(timeframe); ok {
		e.guard(symbol, analysis.SourceMultiTimeframe, deg, func() error {
			if e.higher == nil {
				return fmt.Errorf("no higher-timeframe provider configured")
			}
			higherBars, err := e.higher.GetBars(ctx, symbol, higherTF, e.cfg.HigherTimeframeLookback)
			if err != nil {
				return fmt.Errorf("fetching %s bars: %w", higherTF, err)
			}
			alignment, err := e.mtf.AnalyzeAlignment(result.PrimaryDirection, higherBars)
			if err != nil {
				return err
			}
			result.Alignment = alignment
			return nil
		})
	}

	result.DegradedSources = deg.ordered()
	result.Signals = e.buildSignals(result, bars)

	modifier := e.mtf.ConfidenceModifier(result.Alignment)
	result.BullishScore, result.BearishScore = calculateTrendConfidence(result.Signals, e.cfg.SourceWeights, modifier)
	result.OverallConfidence = result.BullishScore
	if result.BearishScore > result.OverallConfidence {
		result.OverallConfidence = result.BearishScore
	}

	monitoring.SetOverallConfidence(symbol, result.OverallConfidence)
	monitoring.SetRegistrySize(symbol, e.registry.Size(symbol))
	for _, sig := range result.Signals {
		monitoring.RecordSignal(symbol, sig.Type.String())
		if e.bus != nil {
			e.bus.PublishSignalDetected(symbol, sig.Type.String(), string(sig.Source), sig.Strength, sig.Confidence, sig.PriceLevel)
		}
	}

	return result, nil
}

// runVolume executes the volume analyzer steps that depend on the structure
// and trendline outputs.
func (e *Engine) runVolume(result *Result, bars []market.Bar) error {
	// Levels of interest: clustered swing levels, any break levels, and the
	// period extremes the oscillator anchors on.
	highs, lows := analysis.Split(e.swing.Detect(bars))
	levels := analysis.ClusterLevels(lows, 0.01)
	levels = append(levels, analysis.ClusterLevels(highs, 0.01)...)
	if result.StructureBreak != nil {
		levels = append(levels, result.StructureBreak.BreakLevel)
	}
	for _, br := range result.TrendlineBreaks {
		levels = append(levels, br.Line.BreakLevel)
	}
	if hi, lo, ok := e.aroon.Extremes(bars); ok {
		levels = append(levels, hi, lo)
	}

	exhaustion, err := e.volume.DetectExhaustion(bars, levels)
	if err != nil {
		return err
	}
	result.Exhaustion = exhaustion

	divergence, err := e.volume.DetectVolumeDivergence(bars)
	if err != nil {
		return err
	}
	result.VolumeDivergence = divergence

	if result.StructureBreak != nil {
		confirmation, err := e.volume.AnalyzeBreakout(bars, result.StructureBreak.BreakIndex)
		if err != nil {
			return err
		}
		result.BreakoutVolume = confirmation
	}
	return nil
}

// buildSignals converts the sub-results into the fused signal list. The
// order is fixed (structure, divergence, aroon, trendline, volume) so
// repeated runs yield identical slices.
func (e *Engine) buildSignals(result *Result, bars []market.Bar) []analysis.TrendSignal {
	last := bars[len(bars)-1]
	var signals []analysis.TrendSignal

	// Volume confirmation shortfall reduces breakout-driven confidence but
	// never zeroes it.
	breakoutDamp := 1.0
	if result.BreakoutVolume != nil && !result.BreakoutVolume.Confirmed {
		breakoutDamp = 0.8
	}

	if sb := result.StructureBreak; sb != nil {
		include := sb.Confirmed || e.cfg.EnableEarlySignals
		if include {
			confidence := sb.Strength * breakoutDamp
			factors := []string{"break_" + sb.Kind.String()}
			if !sb.Confirmed {
				confidence *= 0.6
				factors = append(factors, "awaiting_follow_through")
			}
			if sb.VolumeConfirmed {
				factors = append(factors, "volume_confirmed")
			}
			signals = append(signals, analysis.TrendSignal{
				Type:              breakSignalType(sb.Kind),
				Strength:          sb.Strength,
				Source:            analysis.SourceStructure,
				Confidence:        analysis.Clamp01(confidence),
				Timestamp:         sb.Timestamp,
				PriceLevel:        sb.BreakLevel,
				SupportingFactors: factors,
			})
		}
	}

	for _, d := range result.Divergences {
		if !d.Validated && !e.cfg.EnableEarlySignals {
			continue
		}
		confidence := d.Strength
		factors := []string{d.Indicator.String() + "_divergence"}
		if !d.Validated {
			confidence *= 0.5
			factors = append(factors, "single_swing_pair")
		}
		sigType := analysis.SignalBullishTrendChange
		if d.Kind == analysis.DivergenceBearish {
			sigType = analysis.SignalBearishTrendChange
		}
		signals = append(signals, analysis.TrendSignal{
			Type:              sigType,
			Strength:          d.Strength,
			Source:            analysis.SourceDivergence,
			Confidence:        analysis.Clamp01(confidence),
			Timestamp:         d.PriceLast.Timestamp,
			PriceLevel:        d.PriceLast.Price,
			SupportingFactors: factors,
		})
	}

	if a := result.Aroon; a != nil {
		var sigType analysis.SignalType
		switch a.Signal {
		case analysis.AroonBullishCross:
			sigType = analysis.SignalBullishTrendChange
		case analysis.AroonBearishCross:
			sigType = analysis.SignalBearishTrendChange
		}
		if sigType != analysis.SignalNone {
			signals = append(signals, analysis.TrendSignal{
				Type:              sigType,
				Strength:          a.TrendStrength,
				Source:            analysis.SourceAroon,
				Confidence:        a.TrendStrength,
				Timestamp:         last.OpenTime,
				PriceLevel:        last.Close,
				SupportingFactors: []string{"aroon_" + a.Signal.String()},
			})
		}
	}

	for _, br := range result.TrendlineBreaks {
		sigType := analysis.SignalBullishTrendChange
		if br.Line.Kind == analysis.LineSupport {
			sigType = analysis.SignalBearishTrendChange
		}
		confidence := br.Strength * breakoutDamp
		factors := []string{br.Line.Kind.String() + "_line_break"}
		if br.RetestConfirmed {
			confidence = analysis.Clamp01(confidence + 0.15)
			factors = append(factors, "retest_confirmed")
		}
		signals = append(signals, analysis.TrendSignal{
			Type:              sigType,
			Strength:          br.Strength,
			Source:            analysis.SourceTrendline,
			Confidence:        analysis.Clamp01(confidence),
			Timestamp:         br.Timestamp,
			PriceLevel:        br.Price,
			SupportingFactors: factors,
		})
	}

	if ex := result.Exhaustion; ex != nil && ex.Detected {
		// Exhaustion argues against the prevailing direction.
		var sigType analysis.SignalType
		switch result.PrimaryDirection {
		case analysis.DirectionUp:
			sigType = analysis.SignalBearishTrendChange
		case analysis.DirectionDown:
			sigType = analysis.SignalBullishTrendChange
		}
		if sigType != analysis.SignalNone {
			factors := []string{"exhaustion_volume"}
			if ex.Reversal {
				factors = append(factors, "reversal_bar")
			}
			signals = append(signals, analysis.TrendSignal{
				Type:              sigType,
				Strength:          ex.Strength,
				Source:            analysis.SourceVolume,
				Confidence:        ex.Strength,
				Timestamp:         ex.Timestamp,
				PriceLevel:        ex.Level,
				SupportingFactors: factors,
			})
		}
	}

	if vd := result.VolumeDivergence; vd != nil && vd.Detected {
		sigType := analysis.SignalBullishTrendChange
		if vd.Kind == analysis.DivergenceBearish {
			sigType = analysis.SignalBearishTrendChange
		}
		signals = append(signals, analysis.TrendSignal{
			Type:              sigType,
			Strength:          vd.Strength,
			Source:            analysis.SourceVolume,
			Confidence:        vd.Strength,
			Timestamp:         last.OpenTime,
			PriceLevel:        last.Close,
			SupportingFactors: []string{"volume_price_divergence"},
		})
	}

	return signals
}

func breakSignalType(kind analysis.BreakKind) analysis.SignalType {
	if kind.Bullish() {
		return analysis.SignalBullishTrendChange
	}
	return analysis.SignalBearishTrendChange
}

// ShouldTradeTrend reports whether a signal of the given type is acceptable:
// the fused confidence must clear the configured minimum and, when
// higher-timeframe alignment is required, the higher timeframe must agree
// with the signal direction.
func (e *Engine) ShouldTradeTrend(ctx context.Context, bars []market.Bar, symbol string, timeframe market.Timeframe, signalType analysis.SignalType) (bool, float64, error) {
	result, err := e.AnalyzeTrendChange(ctx, bars, symbol, timeframe)
	if err != nil {
		return false, 0, err
	}

	var confidence float64
	var wantDir analysis.TrendDirection
	switch signalType {
	case analysis.SignalBullishTrendChange:
		confidence = result.BullishScore
		wantDir = analysis.DirectionUp
	case analysis.SignalBearishTrendChange:
		confidence = result.BearishScore
		wantDir = analysis.DirectionDown
	default:
		return false, 0, fmt.Errorf("unsupported signal type %v", signalType)
	}

	if confidence < e.cfg.MinTrendConfidence {
		return false, confidence, nil
	}
	if !e.mtf.ShouldConfirmSignal(result.Alignment, e.cfg.RequireTimeframeAlignment, wantDir) {
		return false, confidence, nil
	}

	if e.bus != nil {
		e.bus.PublishSignalAccepted(symbol, signalType.String(), confidence)
	}
	return true, confidence, nil
}
