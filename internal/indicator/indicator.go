// Package indicator computes technical indicators over OHLCV bar
// sequences. Every series is aligned 1:1 with the input bars; values
// inside an indicator's warm-up period are NaN.
package indicator

import (
	"fmt"
	"math"
	"strings"

	"github.com/quantblocks/quantblocks/internal/core"
)

// Series is an indicator output aligned by index with the source bars.
// NaN marks bars where the indicator is undefined.
type Series []float64

// Defined reports whether the series has a usable value at idx.
func (s Series) Defined(idx int) bool {
	return idx >= 0 && idx < len(s) && !math.IsNaN(s[idx])
}

// At returns the value at idx, or NaN when out of range.
func (s Series) At(idx int) float64 {
	if idx < 0 || idx >= len(s) {
		return math.NaN()
	}
	return s[idx]
}

// Computed is the output of a single indicator block. Multi-series
// indicators (MACD, Bollinger) fill Named and point Primary at the
// default-alias series; single-series indicators leave Named nil.
type Computed struct {
	Primary Series
	Named   map[string]Series
}

// Compute calculates the indicator identified by kind over bars.
// Unrecognized kinds fail with core.ErrUnknownIndicator. Missing
// params fall back to conventional defaults.
func Compute(bars []core.Bar, kind string, params map[string]float64) (Computed, error) {
	switch strings.ToUpper(kind) {
	case "SMA":
		return Computed{Primary: SMA(closes(bars), intParam(params, "period", 20))}, nil
	case "EMA":
		return Computed{Primary: EMA(closes(bars), intParam(params, "period", 20))}, nil
	case "RSI":
		return Computed{Primary: RSI(closes(bars), intParam(params, "period", 14))}, nil
	case "MACD":
		macd, signal, hist := MACD(closes(bars),
			intParam(params, "fast", 12),
			intParam(params, "slow", 26),
			intParam(params, "signal", 9))
		return Computed{
			Primary: macd,
			Named:   map[string]Series{"macd": macd, "signal": signal, "histogram": hist},
		}, nil
	case "BOLLINGER":
		upper, middle, lower := Bollinger(closes(bars),
			intParam(params, "period", 20),
			floatParam(params, "std", 2))
		return Computed{
			Primary: middle,
			Named:   map[string]Series{"upper": upper, "middle": middle, "lower": lower},
		}, nil
	case "VWAP":
		return Computed{Primary: VWAP(bars)}, nil
	case "ATR":
		return Computed{Primary: ATR(bars, intParam(params, "period", 14))}, nil
	default:
		return Computed{}, core.WrapError(core.ErrUnknownIndicator, fmt.Errorf("%q", kind))
	}
}

// Known reports whether kind names a supported indicator.
func Known(kind string) bool {
	switch strings.ToUpper(kind) {
	case "SMA", "EMA", "RSI", "MACD", "BOLLINGER", "VWAP", "ATR":
		return true
	}
	return false
}

// SMA calculates the Simple Moving Average of values over a trailing
// window. Undefined for the first period-1 indices.
func SMA(values []float64, period int) Series {
	out := undefined(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA calculates the Exponential Moving Average seeded with the first
// value, smoothing factor 2/(period+1). Defined from index 0.
func EMA(values []float64, period int) Series {
	out := undefined(len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}

	alpha := 2.0 / float64(period+1)
	ema := values[0]
	out[0] = ema
	for i := 1; i < len(values); i++ {
		ema += alpha * (values[i] - ema)
		out[i] = ema
	}
	return out
}

// RSI calculates the Relative Strength Index from trailing-window mean
// gain and mean loss. Undefined for the first period indices (the
// first delta only exists at index 1). A window with zero losses
// saturates to 100.
func RSI(values []float64, period int) Series {
	out := undefined(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
		if i > period {
			old := values[i-period] - values[i-period-1]
			if old > 0 {
				gainSum -= old
			} else {
				lossSum += old
			}
		}
		if i >= period {
			avgGain := gainSum / float64(period)
			avgLoss := lossSum / float64(period)
			if avgLoss == 0 {
				out[i] = 100
				continue
			}
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// MACD returns the MACD line (EMA fast − EMA slow), its signal line
// (EMA of the MACD line) and the histogram (macd − signal).
func MACD(values []float64, fast, slow, signal int) (macd, signalLine, histogram Series) {
	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)

	macd = undefined(len(values))
	for i := range values {
		macd[i] = emaFast[i] - emaSlow[i]
	}

	signalLine = EMA(macd, signal)

	histogram = undefined(len(values))
	for i := range values {
		histogram[i] = macd[i] - signalLine[i]
	}
	return macd, signalLine, histogram
}

// Bollinger returns upper/middle/lower bands: middle is SMA(period),
// the bands sit stdMult sample standard deviations away, computed
// over the same trailing window.
func Bollinger(values []float64, period int, stdMult float64) (upper, middle, lower Series) {
	middle = SMA(values, period)
	upper = undefined(len(values))
	lower = undefined(len(values))
	if period < 2 || len(values) < period {
		return upper, middle, lower
	}

	for i := period - 1; i < len(values); i++ {
		mean := middle[i]
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean
			variance += d * d
		}
		sigma := math.Sqrt(variance / float64(period-1))
		upper[i] = mean + stdMult*sigma
		lower[i] = mean - stdMult*sigma
	}
	return upper, middle, lower
}

// VWAP calculates the cumulative Volume Weighted Average Price from
// the start of the bar sequence. The engine never segments sessions;
// callers reset by passing a fresh sequence.
func VWAP(bars []core.Bar) Series {
	out := undefined(len(bars))
	var cumPV, cumVol float64
	for i, b := range bars {
		cumPV += b.TypicalPrice() * b.Volume
		cumVol += b.Volume
		if cumVol > 0 {
			out[i] = cumPV / cumVol
		}
	}
	return out
}

// ATR calculates the trailing mean of the true range
// max(high−low, |high−prevClose|, |low−prevClose|). The first bar's
// true range is high−low; defined from index period−1.
func ATR(bars []core.Bar, period int) Series {
	out := undefined(len(bars))
	if period <= 0 || len(bars) < period {
		return out
	}

	tr := make([]float64, len(bars))
	for i, b := range bars {
		if i == 0 {
			tr[i] = b.High - b.Low
			continue
		}
		prevClose := bars[i-1].Close
		tr[i] = math.Max(b.High-b.Low,
			math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}
	return SMA(tr, period)
}

func closes(bars []core.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func undefined(n int) Series {
	out := make(Series, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func intParam(params map[string]float64, key string, def int) int {
	if v, ok := params[key]; ok && v > 0 {
		return int(v)
	}
	return def
}

func floatParam(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok && v > 0 {
		return v
	}
	return def
}
