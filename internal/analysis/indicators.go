package analysis

import (
	"math"

	"trend-engine/internal/market"
)

// Default periods for the base indicator snapshot.
const (
	DefaultRSIPeriod    = 14
	DefaultMACDFast     = 12
	DefaultMACDSlow     = 26
	DefaultMACDSignal   = 9
	DefaultATRPeriod    = 14
	DefaultVolumePeriod = 20
)

// Indicators is the per-call snapshot of base indicator series. It is
// computed once per analysis and shared read-only by every analyzer, so
// nothing gets recomputed inside a call.
type Indicators struct {
	RSI        []float64 // per-bar Wilder RSI, neutral 50 during warmup
	MACD       []float64 // per-bar MACD line
	MACDSignal []float64
	MACDHist   []float64
	ATR        float64 // trailing average true range
	AvgVolume  float64 // trailing volume average
}

// ComputeIndicators builds the base snapshot with default periods.
func ComputeIndicators(bars []market.Bar) (*Indicators, error) {
	minBars := DefaultMACDSlow + DefaultMACDSignal
	if len(bars) < minBars {
		return nil, insufficientData("indicators", minBars, len(bars))
	}

	atr := ATR(bars, DefaultATRPeriod)
	if atr == 0 {
		return nil, degenerate("indicators", "zero average true range")
	}

	macd, signal, hist := MACDSeries(bars, DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal)

	return &Indicators{
		RSI:        RSISeries(bars, DefaultRSIPeriod),
		MACD:       macd,
		MACDSignal: signal,
		MACDHist:   hist,
		ATR:        atr,
		AvgVolume:  AverageVolume(bars, DefaultVolumePeriod),
	}, nil
}

// SMA computes the simple moving average of closes over the last period bars.
func SMA(bars []market.Bar, period int) float64 {
	if len(bars) < period || period <= 0 {
		return 0
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Close
	}
	return sum / float64(period)
}

// EMASeries computes a per-bar exponential moving average of closes, seeded
// with the SMA of the first period values.
func EMASeries(bars []market.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	if len(bars) == 0 || period <= 0 {
		return out
	}

	multiplier := 2.0 / float64(period+1)
	sum := 0.0
	for i, b := range bars {
		if i < period {
			sum += b.Close
			out[i] = sum / float64(i+1)
			continue
		}
		out[i] = b.Close*multiplier + out[i-1]*(1-multiplier)
	}
	return out
}

// RSISeries computes a per-bar Wilder-smoothed RSI. Bars inside the warmup
// window report the neutral value 50.
func RSISeries(bars []market.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	for i := range out {
		out[i] = 50.0
	}
	if len(bars) < period+1 {
		return out
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := bars[i].Close - bars[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// MACDSeries computes per-bar MACD line, signal line and histogram. The
// signal line is a true EMA over the MACD series, not an approximation.
func MACDSeries(bars []market.Bar, fastPeriod, slowPeriod, signalPeriod int) (macd, signal, hist []float64) {
	fast := EMASeries(bars, fastPeriod)
	slow := EMASeries(bars, slowPeriod)

	macd = make([]float64, len(bars))
	for i := range bars {
		macd[i] = fast[i] - slow[i]
	}

	signal = make([]float64, len(bars))
	hist = make([]float64, len(bars))
	if len(bars) == 0 {
		return macd, signal, hist
	}

	multiplier := 2.0 / float64(signalPeriod+1)
	sum := 0.0
	for i := range macd {
		if i < signalPeriod {
			sum += macd[i]
			signal[i] = sum / float64(i+1)
		} else {
			signal[i] = macd[i]*multiplier + signal[i-1]*(1-multiplier)
		}
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}

// ATR computes the trailing average true range over the last period bars.
func ATR(bars []market.Bar, period int) float64 {
	if len(bars) < period+1 || period <= 0 {
		return 0
	}

	trSum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		high := bars[i].High
		low := bars[i].Low
		prevClose := bars[i-1].Close

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trSum += tr
	}
	return trSum / float64(period)
}

// AverageVolume computes the trailing volume average over the last period
// bars, shrinking the period when fewer bars are available.
func AverageVolume(bars []market.Bar, period int) float64 {
	if len(bars) == 0 {
		return 0
	}
	if len(bars) < period {
		period = len(bars)
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Volume
	}
	return sum / float64(period)
}

// AverageVolumeBefore computes the trailing volume average over the period
// bars strictly preceding index.
func AverageVolumeBefore(bars []market.Bar, index, period int) float64 {
	if index <= 0 {
		return 0
	}
	start := index - period
	if start < 0 {
		start = 0
	}
	if start == index {
		return 0
	}

	sum := 0.0
	for i := start; i < index; i++ {
		sum += bars[i].Volume
	}
	return sum / float64(index-start)
}

// StdDev computes the sample standard deviation of the last period values.
func StdDev(values []float64, period int) float64 {
	if len(values) < period || period < 2 {
		return 0
	}

	window := values[len(values)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))

	variance := 0.0
	for _, v := range window {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(window) - 1)
	return math.Sqrt(variance)
}
