// Package signal detects moving-average crossovers with confirmation delay
// and a minimum re-signal gap between same-type signals.
package signal

import (
	"math"

	"trendlab/internal/engine"
)

// Detect scans the aligned maShort/maLong series for sign changes of
// maShort-maLong. A cross only becomes a signal after the new sign persists
// for confirmBars consecutive bars; the emitted date is the bar completing
// the confirmation, not the raw cross bar. After a signal, another signal of
// the same type is suppressed until at least minCrossGap bars have passed
// since the prior same-type signal; opposite-type signals are exempt.
// Confirmed signals are final. The result is ordered by date.
func Detect(bars []engine.Bar, maShort, maLong []float64, confirmBars, minCrossGap int) []engine.SignalEvent {
	if len(bars) == 0 || len(maShort) != len(bars) || len(maLong) != len(bars) {
		return nil
	}

	diff := make([]float64, len(bars))
	for i := range bars {
		diff[i] = maShort[i] - maLong[i]
	}

	var out []engine.SignalEvent
	lastByType := map[engine.SignalType]int{}

	for i := 0; i < len(bars); i++ {
		if math.IsNaN(diff[i]) {
			continue
		}
		// An undefined prior difference counts as flat, so the bar where both
		// averages first become defined can itself be a cross.
		prev := 0.0
		if i > 0 && !math.IsNaN(diff[i-1]) {
			prev = diff[i-1]
		}

		var sigType engine.SignalType
		switch {
		case diff[i] > 0 && prev <= 0:
			sigType = engine.SignalBuy
		case diff[i] < 0 && prev >= 0:
			sigType = engine.SignalSell
		default:
			continue
		}

		confirmed, ok := confirmAt(diff, i, confirmBars, sigType)
		if !ok {
			continue
		}
		if last, seen := lastByType[sigType]; seen && confirmed-last < minCrossGap {
			continue
		}
		lastByType[sigType] = confirmed

		out = append(out, engine.SignalEvent{
			Date:    bars[confirmed].Date,
			Type:    sigType,
			Price:   bars[confirmed].Close,
			MAShort: maShort[confirmed],
			MALong:  maLong[confirmed],
		})
	}
	return out
}

// confirmAt reports the confirmation-completion index for a cross at idx, or
// false when the trend reverses (or data ends) before confirmation completes.
func confirmAt(diff []float64, idx, confirmBars int, sigType engine.SignalType) (int, bool) {
	if confirmBars == 0 {
		return idx, true
	}
	end := idx + confirmBars
	if end >= len(diff) {
		return 0, false
	}
	for i := idx; i <= end; i++ {
		if math.IsNaN(diff[i]) {
			return 0, false
		}
		if sigType == engine.SignalBuy && diff[i] <= 0 {
			return 0, false
		}
		if sigType == engine.SignalSell && diff[i] >= 0 {
			return 0, false
		}
	}
	return end, true
}
