// Package exposure turns indicator state into a daily target exposure
// fraction through an ordered pipeline of independently toggleable stages.
// Each stage is a pure transform of the pipeline state; exposure is clamped
// to [0, max_leverage] after every stage, and the value at date d uses
// information through the close of d only.
package exposure

import (
	"math"

	"trendlab/internal/engine"
	"trendlab/internal/engine/indicator"
)

// state is the mutable pipeline state shared by the stages.
type state struct {
	bars     []engine.Bar
	closes   []float64
	signals  []engine.SignalEvent
	exposure []float64
}

type stage struct {
	name  string
	apply func(*state, engine.EffectiveConfig)
}

// Target computes the daily target exposure series for bars under cfg.
// Signals are only consulted by the baseline stage; the ensemble stage
// derives its own per-pair state. The result is deterministic and aligned
// 1:1 with bars.
func Target(bars []engine.Bar, signals []engine.SignalEvent, cfg engine.EffectiveConfig) []float64 {
	s := &state{
		bars:     bars,
		closes:   indicator.Closes(bars),
		signals:  signals,
		exposure: make([]float64, len(bars)),
	}
	for _, st := range pipeline(cfg) {
		st.apply(s, cfg)
		clamp(s.exposure, cfg.MaxLeverage)
	}
	return s.exposure
}

// pipeline selects the enabled stages in their fixed order.
func pipeline(cfg engine.EffectiveConfig) []stage {
	stages := make([]stage, 0, 4)
	if cfg.UseEnsemble {
		stages = append(stages, stage{"ensemble", applyEnsemble})
	} else {
		stages = append(stages, stage{"baseline", applyBaseline})
	}
	if cfg.UseRegimeFilter {
		stages = append(stages, stage{"regime", applyRegime})
		if cfg.UseADXFilter {
			stages = append(stages, stage{"adx", applyADX})
		}
	}
	if cfg.UseVolTargeting && cfg.TargetVolDaily > 0 && cfg.MaxLeverage > 0 {
		stages = append(stages, stage{"vol_target", applyVolTargeting})
	}
	return stages
}

// applyBaseline sets binary exposure from the most recent confirmed signal
// state: 1 from a BUY signal's date onward until a SELL signal, else 0.
func applyBaseline(s *state, _ engine.EffectiveConfig) {
	next := 0
	long := false
	for i, b := range s.bars {
		for next < len(s.signals) && !s.signals[next].Date.After(b.Date) {
			long = s.signals[next].Type == engine.SignalBuy
			next++
		}
		if long {
			s.exposure[i] = 1.0
		} else {
			s.exposure[i] = 0.0
		}
	}
}

// applyEnsemble sets exposure to the fraction of configured MA pairs that
// are long (short MA above long MA). Pairs still in warm-up count as flat.
func applyEnsemble(s *state, cfg engine.EffectiveConfig) {
	pairs := cfg.EnsemblePairs
	if len(pairs) == 0 {
		return
	}
	longCounts := make([]int, len(s.bars))
	for _, p := range pairs {
		maS := indicator.MovingAverage(s.closes, p.Short, cfg.EnsembleMAType)
		maL := indicator.MovingAverage(s.closes, p.Long, cfg.EnsembleMAType)
		for i := range s.bars {
			if !math.IsNaN(maS[i]) && !math.IsNaN(maL[i]) && maS[i] > maL[i] {
				longCounts[i]++
			}
		}
	}
	for i := range s.exposure {
		s.exposure[i] = float64(longCounts[i]) / float64(len(pairs))
	}
}

// applyRegime forces exposure to zero while the close is at or below the
// regime moving average on the decision date (undefined MA counts as out of
// regime).
func applyRegime(s *state, cfg engine.EffectiveConfig) {
	ma := indicator.SMA(s.closes, cfg.RegimeMAWindow)
	for i := range s.exposure {
		if math.IsNaN(ma[i]) || s.closes[i] <= ma[i] {
			s.exposure[i] = 0.0
		}
	}
}

// applyADX forces exposure to zero while ADX is at or below the configured
// threshold (undefined ADX counts as below).
func applyADX(s *state, cfg engine.EffectiveConfig) {
	adx := indicator.ADX(s.bars, cfg.ADXWindow)
	for i := range s.exposure {
		if math.IsNaN(adx[i]) || adx[i] <= cfg.ADXThreshold {
			s.exposure[i] = 0.0
		}
	}
}

// applyVolTargeting scales exposure by min(max_leverage,
// target_vol_daily/volatility_proxy) with the proxy floored at
// min_vol_floor. Bars with an undefined proxy scale to zero.
func applyVolTargeting(s *state, cfg engine.EffectiveConfig) {
	proxy := indicator.VolatilityProxy(s.bars, cfg.VolWindow)
	for i := range s.exposure {
		if math.IsNaN(proxy[i]) {
			s.exposure[i] = 0.0
			continue
		}
		vol := math.Max(proxy[i], cfg.MinVolFloor)
		scale := math.Min(cfg.MaxLeverage, cfg.TargetVolDaily/vol)
		s.exposure[i] *= scale
	}
}

func clamp(exposure []float64, maxLeverage float64) {
	for i, v := range exposure {
		if math.IsNaN(v) || v < 0 {
			exposure[i] = 0.0
		} else if v > maxLeverage {
			exposure[i] = maxLeverage
		}
	}
}
