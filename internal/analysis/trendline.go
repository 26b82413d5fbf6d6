package analysis

import (
	"fmt"
	"math"
	"sort"

	"trend-engine/internal/market"
)

// LineKind distinguishes support from resistance lines.
type LineKind int

const (
	LineSupport LineKind = iota
	LineResistance
)

func (k LineKind) String() string {
	if k == LineSupport {
		return "support"
	}
	return "resistance"
}

// TrendlineState is the lifecycle state of a trendline. Transitions:
// Candidate -> Validated -> Broken -> RetestPending -> Confirmed|Invalidated.
type TrendlineState int

const (
	StateCandidate TrendlineState = iota
	StateValidated
	StateBroken
	StateRetestPending
	StateConfirmed
	StateInvalidated
)

func (s TrendlineState) String() string {
	switch s {
	case StateCandidate:
		return "candidate"
	case StateValidated:
		return "validated"
	case StateBroken:
		return "broken"
	case StateRetestPending:
		return "retest_pending"
	case StateConfirmed:
		return "confirmed"
	case StateInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s TrendlineState) Terminal() bool {
	return s == StateConfirmed || s == StateInvalidated
}

// Trendline is a support or resistance line fitted through two same-kind
// swing points and tracked through its lifecycle. Anchors are stored by
// timestamp so a line survives across analysis calls with shifting windows.
type Trendline struct {
	ID         string         `json:"id"`
	Symbol     string         `json:"symbol"`
	Kind       LineKind       `json:"kind"`
	AnchorA    SwingPoint     `json:"anchor_a"` // earlier anchor
	AnchorB    SwingPoint     `json:"anchor_b"`
	Slope      float64        `json:"slope"` // price units per bar
	AngleDeg   float64        `json:"angle_deg"`
	TouchCount int            `json:"touch_count"`
	Strength   float64        `json:"strength"`
	State      TrendlineState `json:"state"`
	BreakLevel float64        `json:"break_level,omitempty"`
	BreakTime  int64          `json:"break_time,omitempty"`
	RetestTime int64          `json:"retest_time,omitempty"`

	// Window-relative indexes, rebased at the start of every analysis call.
	aIdx      int
	breakIdx  int
	retestIdx int
}

// ValueAt returns the line's price at a window-relative bar index.
func (t *Trendline) ValueAt(index int) float64 {
	return t.AnchorA.Price + t.Slope*float64(index-t.aIdx)
}

// TrendlineBreak records a Validated line being breached.
type TrendlineBreak struct {
	Line            *Trendline `json:"line"`
	BreakIndex      int        `json:"break_index"`
	Timestamp       int64      `json:"timestamp"`
	Price           float64    `json:"price"`
	VolumeConfirmed bool       `json:"volume_confirmed"`
	RetestConfirmed bool       `json:"retest_confirmed"`
	Strength        float64    `json:"strength"`
}

// TrendlineAnalyzer fits, validates and tracks trendlines. One analyzer
// instance is shared across symbols; all per-symbol state lives in the
// Trendline values handed back to the caller's registry.
type TrendlineAnalyzer struct {
	detector          *SwingPointDetector
	minTouches        int
	angleMinDeg       float64
	angleMaxDeg       float64
	toleranceATR      float64 // touch/retest band half-width in ATR units
	breakVolumeFactor float64
	retestWindowBars  int
	confirmBars       int
	maxSwings         int
}

// TrendlineParams bundles the analyzer's tunables.
type TrendlineParams struct {
	MinTouches       int
	AngleMinDeg      float64
	AngleMaxDeg      float64
	RetestWindowBars int
	ConfirmBars      int
}

// NewTrendlineAnalyzer creates an analyzer with the given parameters,
// filling zero values with defaults.
func NewTrendlineAnalyzer(detector *SwingPointDetector, params TrendlineParams) *TrendlineAnalyzer {
	if params.MinTouches <= 0 {
		params.MinTouches = 3
	}
	if params.AngleMinDeg == 0 {
		params.AngleMinDeg = 10
	}
	if params.AngleMaxDeg == 0 {
		params.AngleMaxDeg = 80
	}
	if params.RetestWindowBars <= 0 {
		params.RetestWindowBars = 20
	}
	if params.ConfirmBars <= 0 {
		params.ConfirmBars = 3
	}
	return &TrendlineAnalyzer{
		detector:          detector,
		minTouches:        params.MinTouches,
		angleMinDeg:       params.AngleMinDeg,
		angleMaxDeg:       params.AngleMaxDeg,
		toleranceATR:      0.25,
		breakVolumeFactor: 1.0,
		retestWindowBars:  params.RetestWindowBars,
		confirmBars:       params.ConfirmBars,
		maxSwings:         6,
	}
}

// Analyze advances the lifecycle of existing lines against the current bar
// window, fits new candidates from fresh swing points, and reports a break
// for every line whose break bar lies inside the window. The returned line
// slice is the caller's new registry content for symbol. For a fixed window
// and registry content the output is a fixed point: calling again with the
// returned lines yields the same lines and the same breaks.
func (ta *TrendlineAnalyzer) Analyze(symbol string, bars []market.Bar, ind *Indicators, existing []*Trendline) ([]*Trendline, []*TrendlineBreak, error) {
	minBars := ta.detector.Window()*4 + 1
	if len(bars) < minBars {
		return existing, nil, insufficientData("trendline", minBars, len(bars))
	}
	if ind == nil || ind.ATR == 0 {
		return existing, nil, degenerate("trendline", "missing indicator snapshot")
	}

	tol := ta.toleranceATR * ind.ATR

	known := make(map[string]bool, len(existing))
	lines := make([]*Trendline, 0, len(existing))
	for _, line := range existing {
		known[line.ID] = true
		if !ta.rebase(line, bars) {
			// Anchors have scrolled too far out of reach; drop the line.
			continue
		}
		lines = append(lines, line)
	}

	// Fit new candidates from the current window's swing points.
	for _, line := range ta.identify(symbol, bars, ind) {
		if !known[line.ID] {
			known[line.ID] = true
			lines = append(lines, line)
		}
	}

	// Canonical order: by anchors, then kind. Registry round-trips and
	// candidate refits then produce the same slice for the same window.
	sort.Slice(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]
		if a.AnchorA.Timestamp != b.AnchorA.Timestamp {
			return a.AnchorA.Timestamp < b.AnchorA.Timestamp
		}
		if a.AnchorB.Timestamp != b.AnchorB.Timestamp {
			return a.AnchorB.Timestamp < b.AnchorB.Timestamp
		}
		return a.Kind < b.Kind
	})

	for _, line := range lines {
		if line.State.Terminal() {
			continue
		}

		if line.State == StateCandidate || line.State == StateValidated {
			ta.rescoreTouches(line, bars, tol)
		}
		if line.State == StateValidated {
			ta.detectBreak(line, bars, ind, tol)
		}
		if line.State == StateBroken || line.State == StateRetestPending {
			ta.advanceRetest(line, bars, tol)
		}
	}

	// Breaks are reported from line state, not from the transition above:
	// every line whose break bar sits inside the current window yields a
	// report, so re-running over the same window returns the same set.
	var breaks []*TrendlineBreak
	for _, line := range lines {
		if br := ta.breakReport(line, bars, ind); br != nil {
			breaks = append(breaks, br)
		}
	}

	return lines, breaks, nil
}

// identify fits candidate lines through pairs of recent same-kind swing
// points. Candidates whose angle falls outside the configured band are
// discarded immediately and never retried.
func (ta *TrendlineAnalyzer) identify(symbol string, bars []market.Bar, ind *Indicators) []*Trendline {
	highs, lows := Split(ta.detector.Detect(bars))

	var lines []*Trendline
	lines = append(lines, ta.fitKind(symbol, bars, ind, lows, LineSupport)...)
	lines = append(lines, ta.fitKind(symbol, bars, ind, highs, LineResistance)...)
	return lines
}

func (ta *TrendlineAnalyzer) fitKind(symbol string, bars []market.Bar, ind *Indicators, points []SwingPoint, kind LineKind) []*Trendline {
	if len(points) > ta.maxSwings {
		points = points[len(points)-ta.maxSwings:]
	}

	tol := ta.toleranceATR * ind.ATR

	var lines []*Trendline
	for i := 0; i < len(points)-1; i++ {
		for j := i + 1; j < len(points); j++ {
			line := ta.fit(symbol, bars, ind, points[i], points[j], kind)
			if line == nil {
				continue
			}
			ta.rescoreTouches(line, bars, tol)
			lines = append(lines, line)
		}
	}
	return lines
}

// fit builds a candidate through anchors a and b, or nil when the geometry
// is outside the angle band. The slope is normalized by ATR before taking
// the arctangent so the band is price-scale free.
func (ta *TrendlineAnalyzer) fit(symbol string, bars []market.Bar, ind *Indicators, a, b SwingPoint, kind LineKind) *Trendline {
	if b.Index <= a.Index {
		return nil
	}

	slope := (b.Price - a.Price) / float64(b.Index-a.Index)
	angle := math.Atan(slope/ind.ATR) * 180.0 / math.Pi

	if abs := math.Abs(angle); abs <= ta.angleMinDeg || abs >= ta.angleMaxDeg {
		return nil
	}

	return &Trendline{
		ID:       fmt.Sprintf("%s-%s-%d-%d", symbol, kind, a.Timestamp, b.Timestamp),
		Symbol:   symbol,
		Kind:     kind,
		AnchorA:  a,
		AnchorB:  b,
		Slope:    slope,
		AngleDeg: angle,
		State:    StateCandidate,
		aIdx:     a.Index,
	}
}

// rescoreTouches recounts qualifying touches across the window and promotes
// Candidate lines that reached the touch minimum. Each touch adds strength.
func (ta *TrendlineAnalyzer) rescoreTouches(line *Trendline, bars []market.Bar, tol float64) {
	touches := 2 // the anchors
	lastTouch := line.AnchorB.Index

	start := line.AnchorB.Index + 1
	if start < 0 {
		start = 0
	}
	for i := start; i < len(bars); i++ {
		value := line.ValueAt(i)

		var touched bool
		if line.Kind == LineSupport {
			touched = bars[i].Low >= value-tol && bars[i].Low <= value+tol && bars[i].Close >= value-tol
		} else {
			touched = bars[i].High >= value-tol && bars[i].High <= value+tol && bars[i].Close <= value+tol
		}

		// Adjacent bars hugging the line count as one touch.
		if touched && i-lastTouch > ta.detector.Window() {
			touches++
			lastTouch = i
		}
	}

	line.TouchCount = touches
	line.Strength = Clamp01(0.25 + 0.15*float64(touches-2))

	if line.State == StateCandidate && touches >= ta.minTouches {
		line.State = StateValidated
	}
}

// detectBreak scans for a close beyond a Validated line on above-average
// volume and transitions the line to Broken.
func (ta *TrendlineAnalyzer) detectBreak(line *Trendline, bars []market.Bar, ind *Indicators, tol float64) {
	start := line.AnchorB.Index + 1
	if start < 1 {
		start = 1
	}

	for i := start; i < len(bars); i++ {
		value := line.ValueAt(i)

		var beyond bool
		if line.Kind == LineSupport {
			beyond = bars[i].Close < value-tol
		} else {
			beyond = bars[i].Close > value+tol
		}
		if !beyond {
			continue
		}

		avgVol := AverageVolumeBefore(bars, i, DefaultVolumePeriod)
		if avgVol == 0 || bars[i].Volume <= avgVol*ta.breakVolumeFactor {
			continue
		}

		line.State = StateBroken
		line.BreakLevel = value
		line.BreakTime = bars[i].OpenTime
		line.breakIdx = i
		return
	}
}

// breakReport rebuilds the break report for a broken line from the bars at
// its break index. Strength and volume confirmation come out identical on
// every call over the same window.
func (ta *TrendlineAnalyzer) breakReport(line *Trendline, bars []market.Bar, ind *Indicators) *TrendlineBreak {
	if line.BreakTime == 0 {
		return nil
	}
	i := indexOfTime(bars, line.BreakTime)
	if i < 1 {
		return nil
	}

	avgVol := AverageVolumeBefore(bars, i, DefaultVolumePeriod)
	volRatio := 0.0
	if avgVol > 0 {
		volRatio = bars[i].Volume / avgVol
	}

	breach := math.Abs(bars[i].Close-line.BreakLevel) / ind.ATR
	strength := Clamp01(0.6*math.Min(breach, 1.0) + 0.4*math.Min(volRatio/2.0, 1.0))

	return &TrendlineBreak{
		Line:            line,
		BreakIndex:      i,
		Timestamp:       line.BreakTime,
		Price:           bars[i].Close,
		VolumeConfirmed: volRatio > ta.breakVolumeFactor,
		Strength:        strength,
	}
}

// advanceRetest walks the bars after a break and drives the
// Broken -> RetestPending -> Confirmed|Invalidated transitions.
func (ta *TrendlineAnalyzer) advanceRetest(line *Trendline, bars []market.Bar, tol float64) {
	downward := line.Kind == LineSupport // support broke downward

	if line.State == StateBroken {
		deadline := line.breakIdx + ta.retestWindowBars
		for i := line.breakIdx + 1; i < len(bars) && i <= deadline; i++ {
			var reentered bool
			if downward {
				reentered = bars[i].High >= line.BreakLevel-tol
			} else {
				reentered = bars[i].Low <= line.BreakLevel+tol
			}
			if reentered {
				line.State = StateRetestPending
				line.RetestTime = bars[i].OpenTime
				line.retestIdx = i
				break
			}
		}
		if line.State == StateBroken && len(bars)-1 > deadline {
			line.State = StateInvalidated
		}
	}

	if line.State != StateRetestPending {
		return
	}

	held := 0
	deadline := line.retestIdx + ta.retestWindowBars
	for i := line.retestIdx + 1; i < len(bars); i++ {
		var recrossed bool
		if downward {
			recrossed = bars[i].Close > line.BreakLevel+tol
		} else {
			recrossed = bars[i].Close < line.BreakLevel-tol
		}
		if recrossed {
			line.State = StateInvalidated
			return
		}

		held++
		if held >= ta.confirmBars {
			line.State = StateConfirmed
			return
		}
		if i > deadline {
			line.State = StateInvalidated
			return
		}
	}
}

// rebase maps a line's stored timestamps onto the current bar window so
// index arithmetic stays valid as the window slides. Returns false when the
// window's spacing cannot be established.
func (ta *TrendlineAnalyzer) rebase(line *Trendline, bars []market.Bar) bool {
	if len(bars) < 2 {
		return false
	}

	line.aIdx = indexOfTime(bars, line.AnchorA.Timestamp)
	if bIdx := indexOfTime(bars, line.AnchorB.Timestamp); bIdx >= 0 {
		line.AnchorB.Index = bIdx
	} else {
		return false
	}
	if line.aIdx >= 0 {
		line.AnchorA.Index = line.aIdx
	} else {
		// Anchor A scrolled out; extrapolate its index from bar spacing.
		interval := bars[1].OpenTime - bars[0].OpenTime
		if interval <= 0 {
			return false
		}
		line.aIdx = int((line.AnchorA.Timestamp - bars[0].OpenTime) / interval)
		line.AnchorA.Index = line.aIdx
	}

	if line.BreakTime != 0 {
		if idx := indexOfTime(bars, line.BreakTime); idx >= 0 {
			line.breakIdx = idx
		}
	}
	if line.RetestTime != 0 {
		if idx := indexOfTime(bars, line.RetestTime); idx >= 0 {
			line.retestIdx = idx
		}
	}
	return true
}

// indexOfTime locates the bar whose open time equals ts, or -1.
func indexOfTime(bars []market.Bar, ts int64) int {
	i := sort.Search(len(bars), func(i int) bool { return bars[i].OpenTime >= ts })
	if i < len(bars) && bars[i].OpenTime == ts {
		return i
	}
	return -1
}
