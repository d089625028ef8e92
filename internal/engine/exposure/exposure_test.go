package exposure

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendlab/internal/engine"
	"trendlab/internal/engine/indicator"
	"trendlab/internal/engine/signal"
)

func barsFromCloses(closes []float64) []engine.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]engine.Bar, len(closes))
	for i, c := range closes {
		bars[i] = engine.Bar{
			Date:  start.AddDate(0, 0, i),
			Open:  c,
			High:  c * 1.01,
			Low:   c * 0.99,
			Close: c,
		}
	}
	return bars
}

func risingBars(n int) []engine.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return barsFromCloses(closes)
}

func resolve(t *testing.T, cfg engine.Config) engine.EffectiveConfig {
	t.Helper()
	eff, err := cfg.Resolve()
	require.NoError(t, err)
	return eff
}

func detectFor(bars []engine.Bar, eff engine.EffectiveConfig) []engine.SignalEvent {
	closes := indicator.Closes(bars)
	maShort := indicator.SMA(closes, eff.ShortWindow)
	maLong := indicator.SMA(closes, eff.LongWindow)
	return signal.Detect(bars, maShort, maLong, eff.ConfirmBars, eff.MinCrossGap)
}

func TestTargetBaselineBinary(t *testing.T) {
	bars := risingBars(120)
	eff := resolve(t, engine.DefaultConfig())
	signals := detectFor(bars, eff)
	require.NotEmpty(t, signals)

	target := Target(bars, signals, eff)

	require.Len(t, target, len(bars))
	for i, b := range bars {
		want := 0.0
		if !b.Date.Before(signals[0].Date) {
			want = 1.0
		}
		assert.Equal(t, want, target[i], "index %d", i)
	}
}

func TestTargetEnsembleFractions(t *testing.T) {
	bars := risingBars(300)

	tests := []struct {
		name  string
		pairs []engine.WindowPair
		// index to probe and expected fraction once all pairs are warmed up
		want float64
	}{
		{
			name:  "all pairs long",
			pairs: []engine.WindowPair{{Short: 5, Long: 20}, {Short: 10, Long: 50}},
			want:  1.0,
		},
		{
			name:  "half the pairs warmed up",
			pairs: []engine.WindowPair{{Short: 5, Long: 20}, {Short: 100, Long: 400}},
			want:  0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := engine.DefaultConfig()
			cfg.UseEnsemble = true
			cfg.EnsemblePairs = tt.pairs
			eff := resolve(t, cfg)

			target := Target(bars, nil, eff)
			assert.Equal(t, tt.want, target[len(target)-1])
		})
	}
}

func TestApplyRegimeForcesFlat(t *testing.T) {
	// a falling series keeps the close below its own trailing average
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 400 - float64(i)
	}
	bars := barsFromCloses(closes)

	cfg := engine.DefaultConfig()
	cfg.UseRegimeFilter = true
	cfg.RegimeMAWindow = 50
	eff := resolve(t, cfg)

	s := &state{bars: bars, closes: closes, exposure: make([]float64, len(bars))}
	for i := range s.exposure {
		s.exposure[i] = 1.0
	}
	applyRegime(s, eff)

	for i, v := range s.exposure {
		assert.Equal(t, 0.0, v, "index %d", i)
	}
}

func TestApplyADXZeroesWeakTrend(t *testing.T) {
	// constant closes carry no directional movement at all
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100
	}
	bars := barsFromCloses(closes)

	cfg := engine.DefaultConfig()
	cfg.UseRegimeFilter = true
	cfg.UseADXFilter = true
	eff := resolve(t, cfg)

	s := &state{bars: bars, closes: closes, exposure: make([]float64, len(bars))}
	for i := range s.exposure {
		s.exposure[i] = 1.0
	}
	applyADX(s, eff)

	for i, v := range s.exposure {
		assert.Equal(t, 0.0, v, "index %d", i)
	}
}

func TestTargetRegimeFilterWarmupIsFlat(t *testing.T) {
	bars := risingBars(300)
	cfg := engine.DefaultConfig()
	cfg.UseRegimeFilter = true
	cfg.RegimeMAWindow = 200
	eff := resolve(t, cfg)

	target := Target(bars, detectFor(bars, eff), eff)
	for i := 0; i < 199; i++ {
		assert.Equal(t, 0.0, target[i], "index %d", i)
	}
	assert.Equal(t, 1.0, target[len(target)-1])
}

func TestTargetADXFilterRequiresRegimeFilter(t *testing.T) {
	bars := risingBars(300)
	cfg := engine.DefaultConfig()
	cfg.UseADXFilter = true
	cfg.ADXThreshold = 100 // would zero everything if it were applied
	eff := resolve(t, cfg)

	target := Target(bars, detectFor(bars, eff), eff)
	assert.Equal(t, 1.0, target[len(target)-1])
}

func TestTargetVolTargetingScales(t *testing.T) {
	bars := risingBars(300)
	cfg := engine.DefaultConfig()
	cfg.UseVolTargeting = true
	cfg.TargetVolAnnual = 0.15
	eff := resolve(t, cfg)

	assert.InDelta(t, 0.009449, eff.TargetVolDaily, 1e-5)

	target := Target(bars, detectFor(bars, eff), eff)
	last := len(bars) - 1
	proxy := indicator.VolatilityProxy(bars, eff.VolWindow)
	wantScale := math.Min(eff.MaxLeverage, eff.TargetVolDaily/math.Max(proxy[last], eff.MinVolFloor))
	assert.InDelta(t, wantScale, target[last], 1e-9)
}

func TestTargetVolTargetingDisabledByZeroTarget(t *testing.T) {
	bars := risingBars(300)
	cfg := engine.DefaultConfig()
	cfg.UseVolTargeting = true
	cfg.TargetVolAnnual = 0
	cfg.TargetVol = 0
	eff := resolve(t, cfg)

	target := Target(bars, detectFor(bars, eff), eff)
	assert.Equal(t, 1.0, target[len(target)-1])
}

func TestTargetBounds(t *testing.T) {
	closes := make([]float64, 400)
	for i := range closes {
		closes[i] = 100 + 30*math.Sin(float64(i)/11) + float64(i)*0.2
	}
	bars := barsFromCloses(closes)

	cfg := engine.DefaultConfig()
	cfg.UseEnsemble = true
	cfg.EnsemblePairs = engine.DefaultEnsemblePairs()
	cfg.UseRegimeFilter = true
	cfg.UseADXFilter = true
	cfg.UseVolTargeting = true
	cfg.MaxLeverage = 1.5
	eff := resolve(t, cfg)

	target := Target(bars, nil, eff)
	for i, v := range target {
		assert.False(t, math.IsNaN(v), "index %d", i)
		assert.GreaterOrEqual(t, v, 0.0, "index %d", i)
		assert.LessOrEqual(t, v, eff.MaxLeverage, "index %d", i)
	}
}

func TestTargetIsCausal(t *testing.T) {
	bars := risingBars(260)
	cfg := engine.DefaultConfig()
	cfg.UseEnsemble = true
	cfg.EnsemblePairs = engine.DefaultEnsemblePairs()
	cfg.UseRegimeFilter = true
	cfg.UseVolTargeting = true
	eff := resolve(t, cfg)

	base := Target(bars, nil, eff)

	perturbed := make([]engine.Bar, len(bars))
	copy(perturbed, bars)
	cut := 240
	perturbed[cut].Close *= 1.4
	perturbed[cut].High *= 1.4
	next := Target(perturbed, nil, eff)

	for i := 0; i < cut; i++ {
		assert.Equal(t, base[i], next[i], "index %d", i)
	}
}
