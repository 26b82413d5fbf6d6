package analysis

import (
	"trend-engine/internal/market"
)

const testBarInterval = int64(15 * 60 * 1000)

// barsFromCloses builds a bar series from closes with High = close+1 and
// Low = close-1, constant volume.
func barsFromCloses(closes []float64, volume float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = market.Bar{
			OpenTime:  int64(i) * testBarInterval,
			Open:      open,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    volume,
			CloseTime: int64(i+1)*testBarInterval - 1,
		}
	}
	return bars
}

// zigzagUpCloses builds an uptrend whose troughs lie exactly on a straight
// line rising troughStep price units per bar. Each 6-bar cycle climbs 10
// units to its peak and falls back to the next trough, so with window 2 the
// swing lows land at indexes 0, 6, 12, ... and the swing highs at 3, 9, 15,
// and so on. A closing trough is appended after the last cycle.
func zigzagUpCloses(cycles int, troughStep float64) []float64 {
	var closes []float64
	for k := 0; k < cycles; k++ {
		t := 100.0 + troughStep*6.0*float64(k)
		down := (10.0 - troughStep*6.0) / 3.0
		closes = append(closes,
			t,
			t+10.0/3.0,
			t+20.0/3.0,
			t+10.0,
			t+10.0-down,
			t+10.0-2.0*down,
		)
	}
	closes = append(closes, 100.0+troughStep*6.0*float64(cycles))
	return closes
}

// zigzagDownCloses mirrors zigzagUpCloses around 300: peaks and troughs both
// descend, giving a clean downtrend.
func zigzagDownCloses(cycles int, peakStep float64) []float64 {
	up := zigzagUpCloses(cycles, peakStep)
	closes := make([]float64, len(up))
	for i, c := range up {
		closes[i] = 300.0 - c
	}
	return closes
}

// fourPeakCloses builds four ascending 10-bar cycles whose peaks sit at
// indexes 4, 14, 24, 34 with prices 104, 109, 114, 119 and whose troughs
// ascend as well, so only the high side can diverge bearishly.
func fourPeakCloses() []float64 {
	var closes []float64
	for c := 0; c < 4; c++ {
		base := 100.0 + 5.0*float64(c)
		closes = append(closes,
			base, base+1, base+2, base+3, base+4,
			base+3, base+2, base+1, base+0.5, base+0.25,
		)
	}
	return closes
}
