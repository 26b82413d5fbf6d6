package analysis

import (
	"iter"

	"trend-engine/internal/market"
)

// SwingKind distinguishes swing highs from swing lows.
type SwingKind int

const (
	SwingHigh SwingKind = iota
	SwingLow
)

func (k SwingKind) String() string {
	if k == SwingHigh {
		return "high"
	}
	return "low"
}

// SwingPoint is a local price pivot relative to a symmetric bar window.
type SwingPoint struct {
	Index     int       `json:"index"`
	Timestamp int64     `json:"timestamp"`
	Price     float64   `json:"price"`
	Kind      SwingKind `json:"kind"`
}

// SwingPointDetector identifies local pivots. A bar at index i is a swing
// high iff its high is the strict maximum across [i-w, i+w]; swing lows are
// symmetric. The last w bars lack lookahead and are never evaluated.
type SwingPointDetector struct {
	window int
}

// NewSwingPointDetector creates a detector with pivot width w.
func NewSwingPointDetector(window int) *SwingPointDetector {
	if window <= 0 {
		window = 5
	}
	return &SwingPointDetector{window: window}
}

// Window returns the pivot width.
func (d *SwingPointDetector) Window() int {
	return d.window
}

// Points yields swing points in bar order. The sequence is lazy and can be
// restarted; repeated iteration over the same bars yields identical points.
func (d *SwingPointDetector) Points(bars []market.Bar) iter.Seq[SwingPoint] {
	return func(yield func(SwingPoint) bool) {
		w := d.window
		for i := w; i < len(bars)-w; i++ {
			if isSwingHigh(bars, i, w) {
				p := SwingPoint{Index: i, Timestamp: bars[i].OpenTime, Price: bars[i].High, Kind: SwingHigh}
				if !yield(p) {
					return
				}
			}
			if isSwingLow(bars, i, w) {
				p := SwingPoint{Index: i, Timestamp: bars[i].OpenTime, Price: bars[i].Low, Kind: SwingLow}
				if !yield(p) {
					return
				}
			}
		}
	}
}

// Detect collects every swing point in the window.
func (d *SwingPointDetector) Detect(bars []market.Bar) []SwingPoint {
	var points []SwingPoint
	for p := range d.Points(bars) {
		points = append(points, p)
	}
	return points
}

// Split partitions points into highs and lows, preserving order.
func Split(points []SwingPoint) (highs, lows []SwingPoint) {
	for _, p := range points {
		if p.Kind == SwingHigh {
			highs = append(highs, p)
		} else {
			lows = append(lows, p)
		}
	}
	return highs, lows
}

func isSwingHigh(bars []market.Bar, i, w int) bool {
	h := bars[i].High
	for j := i - w; j <= i+w; j++ {
		if j != i && bars[j].High >= h {
			return false
		}
	}
	return true
}

func isSwingLow(bars []market.Bar, i, w int) bool {
	l := bars[i].Low
	for j := i - w; j <= i+w; j++ {
		if j != i && bars[j].Low <= l {
			return false
		}
	}
	return true
}
