package market

import "time"

// Bar represents a single OHLCV candle.
type Bar struct {
	OpenTime  int64   `json:"openTime"`
	Open      float64 `json:"open,string"`
	High      float64 `json:"high,string"`
	Low       float64 `json:"low,string"`
	Close     float64 `json:"close,string"`
	Volume    float64 `json:"volume,string"`
	CloseTime int64   `json:"closeTime"`
}

// Time returns the bar's open time as a time.Time.
func (b Bar) Time() time.Time {
	return time.UnixMilli(b.OpenTime)
}

// Timeframe represents a chart interval.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// SupportedTimeframes lists every interval the providers understand.
var SupportedTimeframes = []Timeframe{TF1m, TF5m, TF15m, TF1h, TF4h, TF1d}

// IsValidTimeframe reports whether tf is one of the supported intervals.
func IsValidTimeframe(tf Timeframe) bool {
	for _, t := range SupportedTimeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// Duration returns the nominal length of one bar at this timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}
