package engine

import (
	"fmt"
	"math"
)

// MA kinds accepted by the ensemble stage.
const (
	MASimple      = "sma"
	MAExponential = "ema"
)

// Objectives accepted by grid search.
const (
	ObjectiveSharpe = "sharpe"
	ObjectiveCalmar = "calmar"
	ObjectiveCAGR   = "cagr"
)

// Config holds every strategy option understood by the engine. DefaultConfig
// corresponds to the plain dual-MA baseline with all optional modules
// disabled.
type Config struct {
	ShortWindow int `json:"short_window"`
	LongWindow  int `json:"long_window"`

	ConfirmBars int `json:"confirm_bars"`
	MinCrossGap int `json:"min_cross_gap"`

	UseEnsemble    bool         `json:"use_ensemble"`
	EnsemblePairs  []WindowPair `json:"ensemble_pairs,omitempty"`
	EnsembleMAType string       `json:"ensemble_ma_type"`

	UseRegimeFilter bool    `json:"use_regime_filter"`
	RegimeMAWindow  int     `json:"regime_ma_window"`
	UseADXFilter    bool    `json:"use_adx_filter"`
	ADXWindow       int     `json:"adx_window"`
	ADXThreshold    float64 `json:"adx_threshold"`

	UseVolTargeting bool `json:"use_vol_targeting"`
	// TargetVolAnnual takes precedence over the legacy daily TargetVol when
	// both are set; zero means unset.
	TargetVolAnnual    float64 `json:"target_vol_annual"`
	TargetVol          float64 `json:"target_vol"`
	TradingDaysPerYear int     `json:"trading_days_per_year"`
	VolWindow          int     `json:"vol_window"`
	MaxLeverage        float64 `json:"max_leverage"`
	MinVolFloor        float64 `json:"min_vol_floor"`

	UseChandelierStop bool    `json:"use_chandelier_stop"`
	ChandelierK       float64 `json:"chandelier_k"`
	UseVolStop        bool    `json:"use_vol_stop"`
	VolStopATRMult    float64 `json:"vol_stop_atr_mult"`

	FeeRate        float64 `json:"fee_rate"`
	SlippageRate   float64 `json:"slippage_rate"`
	InitialCapital float64 `json:"initial_capital"`
}

// DefaultConfig returns the baseline configuration: dual 5/20 SMA crossover,
// no optional modules, research fee and slippage assumptions.
func DefaultConfig() Config {
	return Config{
		ShortWindow:        5,
		LongWindow:         20,
		EnsembleMAType:     MASimple,
		RegimeMAWindow:     200,
		ADXWindow:          14,
		ADXThreshold:       20.0,
		TargetVolAnnual:    0.15,
		TradingDaysPerYear: 252,
		VolWindow:          14,
		MaxLeverage:        1.0,
		MinVolFloor:        1e-6,
		ChandelierK:        3.0,
		VolStopATRMult:     2.0,
		FeeRate:            0.001,
		SlippageRate:       0.0005,
		InitialCapital:     100.0,
	}
}

// EffectiveConfig is the fully resolved configuration attached to every
// result for exact reproducibility. TargetVolDaily carries the resolved
// annualized-to-daily conversion; LegacyTargetVolIgnored flags a legacy daily
// target that was shadowed by an annualized one.
type EffectiveConfig struct {
	Config
	TargetVolDaily         float64 `json:"target_vol_daily"`
	LegacyTargetVolIgnored bool    `json:"legacy_target_vol_ignored"`
}

// Validate checks every field and returns a ConfigError naming the first
// offending one. It never touches price data.
func (c Config) Validate() error {
	if c.ShortWindow < 1 {
		return NewConfigError("short_window", "must be >= 1")
	}
	if c.LongWindow < 1 {
		return NewConfigError("long_window", "must be >= 1")
	}
	if c.ShortWindow >= c.LongWindow {
		return NewConfigError("short_window", fmt.Sprintf("must be < long_window (%d >= %d)", c.ShortWindow, c.LongWindow))
	}
	if c.ConfirmBars < 0 {
		return NewConfigError("confirm_bars", "must be >= 0")
	}
	if c.MinCrossGap < 0 {
		return NewConfigError("min_cross_gap", "must be >= 0")
	}
	if c.UseEnsemble {
		if len(c.EnsemblePairs) == 0 {
			return NewConfigError("ensemble_pairs", "required when use_ensemble is set")
		}
		for _, p := range c.EnsemblePairs {
			if p.Short < 1 || p.Long < 1 {
				return NewConfigError("ensemble_pairs", "windows must be >= 1")
			}
			if p.Short >= p.Long {
				return NewConfigError("ensemble_pairs", fmt.Sprintf("requires short < long for each pair (%d >= %d)", p.Short, p.Long))
			}
		}
		if c.EnsembleMAType != MASimple && c.EnsembleMAType != MAExponential {
			return NewConfigError("ensemble_ma_type", "must be 'sma' or 'ema'")
		}
	}
	if c.UseRegimeFilter && c.RegimeMAWindow < 1 {
		return NewConfigError("regime_ma_window", "must be >= 1")
	}
	if c.UseADXFilter {
		if c.ADXWindow < 1 {
			return NewConfigError("adx_window", "must be >= 1")
		}
		if c.ADXThreshold < 0 || c.ADXThreshold > 100 {
			return NewConfigError("adx_threshold", "must be within [0, 100]")
		}
	}
	if c.TradingDaysPerYear < 1 {
		return NewConfigError("trading_days_per_year", "must be >= 1")
	}
	if c.UseVolTargeting {
		if c.TargetVolAnnual < 0 {
			return NewConfigError("target_vol_annual", "must be >= 0")
		}
		if c.TargetVol < 0 {
			return NewConfigError("target_vol", "must be >= 0")
		}
		if c.MinVolFloor <= 0 {
			return NewConfigError("min_vol_floor", "must be > 0")
		}
	}
	if c.UseVolTargeting || c.UseChandelierStop || c.UseVolStop {
		if c.VolWindow < 1 {
			return NewConfigError("vol_window", "must be >= 1")
		}
	}
	if c.MaxLeverage < 0 {
		return NewConfigError("max_leverage", "must be >= 0")
	}
	if c.UseChandelierStop && c.ChandelierK <= 0 {
		return NewConfigError("chandelier_k", "must be > 0")
	}
	if c.UseVolStop && c.VolStopATRMult <= 0 {
		return NewConfigError("vol_stop_atr_mult", "must be > 0")
	}
	if c.FeeRate < 0 {
		return NewConfigError("fee_rate", "must be >= 0")
	}
	if c.SlippageRate < 0 {
		return NewConfigError("slippage_rate", "must be >= 0")
	}
	if c.InitialCapital <= 0 {
		return NewConfigError("initial_capital", "must be > 0")
	}
	return nil
}

// Resolve validates the configuration and computes the effective form,
// including the annualized-to-daily volatility target conversion.
func (c Config) Resolve() (EffectiveConfig, error) {
	if err := c.Validate(); err != nil {
		return EffectiveConfig{}, err
	}
	eff := EffectiveConfig{Config: c}
	if c.TargetVolAnnual > 0 {
		eff.TargetVolDaily = c.TargetVolAnnual / math.Sqrt(float64(c.TradingDaysPerYear))
		eff.LegacyTargetVolIgnored = c.TargetVol > 0
	} else {
		eff.TargetVolDaily = c.TargetVol
	}
	return eff, nil
}
