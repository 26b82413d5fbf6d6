package analysis

// TrendDirection represents the prevailing market direction.
type TrendDirection int

const (
	DirectionSideways TrendDirection = iota
	DirectionUp
	DirectionDown
)

func (d TrendDirection) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "sideways"
	}
}

// SignalType classifies a trend-change signal.
type SignalType int

const (
	SignalNone SignalType = iota
	SignalBullishTrendChange
	SignalBearishTrendChange
)

func (s SignalType) String() string {
	switch s {
	case SignalBullishTrendChange:
		return "bullish_trend_change"
	case SignalBearishTrendChange:
		return "bearish_trend_change"
	default:
		return "none"
	}
}

// Source identifies the analyzer that contributed a signal. String-typed so
// configuration can key fusion weights by source name.
type Source string

const (
	SourceStructure      Source = "structure"
	SourceDivergence     Source = "divergence"
	SourceAroon          Source = "aroon"
	SourceTrendline      Source = "trendline"
	SourceVolume         Source = "volume"
	SourceMultiTimeframe Source = "multi_timeframe"
)

// KnownSources lists every analyzer source in fusion order.
var KnownSources = []Source{
	SourceStructure,
	SourceDivergence,
	SourceAroon,
	SourceTrendline,
	SourceVolume,
	SourceMultiTimeframe,
}

// TrendSignal is a single analyzer's vote that the trend is changing.
type TrendSignal struct {
	Type              SignalType `json:"type"`
	Strength          float64    `json:"strength"`
	Source            Source     `json:"source"`
	Confidence        float64    `json:"confidence"`
	Timestamp         int64      `json:"timestamp"`
	PriceLevel        float64    `json:"price_level"`
	SupportingFactors []string   `json:"supporting_factors,omitempty"`
}

// Clamp01 bounds v to [0,1]. Every strength and confidence emitted by the
// analyzers passes through here.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
