package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidateNamesTheField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"short at least one", func(c *Config) { c.ShortWindow = 0 }, "short_window"},
		{"short below long", func(c *Config) { c.ShortWindow = 20; c.LongWindow = 20 }, "short_window"},
		{"negative confirm", func(c *Config) { c.ConfirmBars = -1 }, "confirm_bars"},
		{"negative gap", func(c *Config) { c.MinCrossGap = -1 }, "min_cross_gap"},
		{"ensemble without pairs", func(c *Config) { c.UseEnsemble = true }, "ensemble_pairs"},
		{"ensemble inverted pair", func(c *Config) {
			c.UseEnsemble = true
			c.EnsemblePairs = []WindowPair{{Short: 50, Long: 20}}
		}, "ensemble_pairs"},
		{"ensemble unknown ma type", func(c *Config) {
			c.UseEnsemble = true
			c.EnsemblePairs = []WindowPair{{Short: 5, Long: 20}}
			c.EnsembleMAType = "wma"
		}, "ensemble_ma_type"},
		{"regime window", func(c *Config) { c.UseRegimeFilter = true; c.RegimeMAWindow = 0 }, "regime_ma_window"},
		{"adx threshold range", func(c *Config) { c.UseADXFilter = true; c.ADXThreshold = 150 }, "adx_threshold"},
		{"vol floor", func(c *Config) { c.UseVolTargeting = true; c.MinVolFloor = 0 }, "min_vol_floor"},
		{"negative fee", func(c *Config) { c.FeeRate = -0.01 }, "fee_rate"},
		{"nonpositive capital", func(c *Config) { c.InitialCapital = 0 }, "initial_capital"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			cfgErr, ok := err.(*ConfigError)
			require.True(t, ok)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestResolveVolTargetPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetVolAnnual = 0.15
	cfg.TargetVol = 0.02
	cfg.TradingDaysPerYear = 252

	eff, err := cfg.Resolve()
	require.NoError(t, err)
	assert.InDelta(t, 0.15/math.Sqrt(252), eff.TargetVolDaily, 1e-12)
	assert.True(t, eff.LegacyTargetVolIgnored)

	cfg.TargetVolAnnual = 0
	eff, err = cfg.Resolve()
	require.NoError(t, err)
	assert.InDelta(t, 0.02, eff.TargetVolDaily, 1e-12)
	assert.False(t, eff.LegacyTargetVolIgnored)
}

func TestApplyVariant(t *testing.T) {
	base := DefaultConfig()

	baseline, err := ApplyVariant(base, VariantBaseline, true)
	require.NoError(t, err)
	assert.False(t, baseline.UseEnsemble)
	assert.False(t, baseline.UseChandelierStop)

	full, err := ApplyVariant(base, VariantAdvancedFull, true)
	require.NoError(t, err)
	assert.True(t, full.UseEnsemble)
	assert.True(t, full.UseVolTargeting)
	assert.True(t, full.UseChandelierStop)
	assert.True(t, full.UseVolStop)
	assert.Equal(t, DefaultEnsemblePairs(), full.EnsemblePairs)

	noVol, err := ApplyVariant(base, VariantAdvancedNoVolTg, false)
	require.NoError(t, err)
	assert.True(t, noVol.UseEnsemble)
	assert.False(t, noVol.UseVolTargeting)
	assert.False(t, noVol.UseChandelierStop)

	_, err = ApplyVariant(base, "unknown", false)
	require.Error(t, err)
	for _, id := range KnownVariants() {
		assert.Contains(t, err.Error(), id)
	}
}

func TestInsufficientDataErrorMessage(t *testing.T) {
	err := &InsufficientDataError{
		Segment:    "is",
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		DataMin:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		DataMax:    time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		HasAnyData: true,
	}
	msg := err.Error()
	assert.Contains(t, msg, "is segment")
	assert.Contains(t, msg, "2024-01-01")
	assert.Contains(t, msg, "2025-12-31")

	open := &InsufficientDataError{Segment: "oos", Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.Contains(t, open.Error(), "latest")
	assert.Contains(t, open.Error(), "no data available")
}
