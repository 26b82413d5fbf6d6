package engine

import (
	"trend-engine/internal/analysis"
)

// Result is the fused outcome of one analyze call. Every sub-result is kept
// for explainability: a consumer can trace the overall confidence back to
// the individual analyzer findings.
type Result struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`

	Signals           []analysis.TrendSignal `json:"signals"`
	OverallConfidence float64                `json:"overall_confidence"`
	BullishScore      float64                `json:"bullish_score"`
	BearishScore      float64                `json:"bearish_score"`

	PrimaryDirection analysis.TrendDirection `json:"primary_direction"`

	StructureBreak   *analysis.StructureBreakResult `json:"structure_break,omitempty"`
	Divergences      []*analysis.DivergenceResult   `json:"divergences,omitempty"`
	Aroon            *analysis.AroonSignal          `json:"aroon,omitempty"`
	Trendlines       []*analysis.Trendline          `json:"trendlines,omitempty"`
	TrendlineBreaks  []*analysis.TrendlineBreak     `json:"trendline_breaks,omitempty"`
	Exhaustion       *analysis.ExhaustionSignal     `json:"exhaustion,omitempty"`
	BreakoutVolume   *analysis.VolumeConfirmation   `json:"breakout_volume,omitempty"`
	VolumeDivergence *analysis.VolumeDivergence     `json:"volume_divergence,omitempty"`
	Alignment        *analysis.TimeframeAlignment   `json:"alignment,omitempty"`

	DegradedSources []string `json:"degraded_sources,omitempty"`
}

// Degraded reports whether the named source was omitted from fusion.
func (r *Result) Degraded(source analysis.Source) bool {
	for _, s := range r.DegradedSources {
		if s == string(source) {
			return true
		}
	}
	return false
}
