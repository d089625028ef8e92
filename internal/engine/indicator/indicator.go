// Package indicator provides pure transforms of a daily price series into
// derived series. Every output slice is aligned 1:1 with its input; NaN marks
// warm-up entries whose window is not yet filled. No function reads bars
// beyond the index it is computing.
package indicator

import (
	"math"

	"trendlab/internal/engine"
)

// SMA returns the simple moving average of values. The first window-1
// entries are NaN.
func SMA(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 1 || len(values) < window {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// EMA returns the exponential moving average of values with smoothing factor
// 2/(window+1), seeded by the simple mean of the first window entries. The
// first window-1 entries are NaN.
func EMA(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 1 || len(values) < window {
		return out
	}
	alpha := 2.0 / (float64(window) + 1.0)
	seed := 0.0
	for i := 0; i < window; i++ {
		seed += values[i]
	}
	prev := seed / float64(window)
	out[window-1] = prev
	for i := window; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// MovingAverage dispatches on kind ("sma" or "ema"); unknown kinds fall back
// to the simple mean.
func MovingAverage(values []float64, window int, kind string) []float64 {
	if kind == engine.MAExponential {
		return EMA(values, window)
	}
	return SMA(values, window)
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and uses high-low.
func TrueRange(bars []engine.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			prevClose := bars[i-1].Close
			tr = math.Max(tr, math.Abs(b.High-prevClose))
			tr = math.Max(tr, math.Abs(b.Low-prevClose))
		}
		out[i] = tr
	}
	return out
}

// ATR returns the Wilder-smoothed average true range.
func ATR(bars []engine.Bar, window int) []float64 {
	return wilder(TrueRange(bars), window)
}

// ADX returns the average directional index derived from Wilder-smoothed
// +DM/-DM over the same window as the ATR in the denominator.
func ADX(bars []engine.Bar, window int) []float64 {
	n := len(bars)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	atr := ATR(bars, window)
	plusSM := wilder(plusDM, window)
	minusSM := wilder(minusDM, window)

	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) || atr[i] <= 0 || math.IsNaN(plusSM[i]) || math.IsNaN(minusSM[i]) {
			continue // dx stays 0 where DI is undefined
		}
		plusDI := 100.0 * plusSM[i] / atr[i]
		minusDI := 100.0 * minusSM[i] / atr[i]
		denom := plusDI + minusDI
		if denom == 0 {
			continue
		}
		dx[i] = 100.0 * math.Abs(plusDI-minusDI) / denom
	}
	return wilder(dx, window)
}

// VolatilityProxy returns ATR(window)/close per bar, the daily volatility
// estimate used by the volatility-targeting stage.
func VolatilityProxy(bars []engine.Bar, window int) []float64 {
	atr := ATR(bars, window)
	out := nanSlice(len(bars))
	for i, b := range bars {
		if math.IsNaN(atr[i]) || b.Close == 0 {
			continue
		}
		out[i] = math.Abs(atr[i] / b.Close)
	}
	return out
}

// wilder applies Wilder smoothing (alpha = 1/window) seeded by the simple
// mean of the first full window of defined values.
func wilder(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 1 {
		return out
	}
	// Skip leading NaNs so smoothing of a derived series (e.g. smoothed DM)
	// starts where its own warm-up ends.
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if len(values)-start < window {
		return out
	}
	seed := 0.0
	for i := start; i < start+window; i++ {
		seed += values[i]
	}
	prev := seed / float64(window)
	out[start+window-1] = prev
	w := float64(window)
	for i := start + window; i < len(values); i++ {
		prev = (prev*(w-1) + values[i]) / w
		out[i] = prev
	}
	return out
}

// Closes extracts the close series from bars.
func Closes(bars []engine.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
