package signal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendlab/internal/engine"
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

func detect(closes []float64, short, long, confirm, gap int) []engine.SignalEvent {
	bars := barsFromCloses(closes)
	maShort := sma(closes, short)
	maLong := sma(closes, long)
	return Detect(bars, maShort, maLong, confirm, gap)
}

// local copy so the tests do not depend on the indicator package internals
func sma(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		sum := 0.0
		for j := i - window + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(window)
	}
	return out
}

func TestDetectRisingSeriesSingleBuy(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	signals := detect(closes, 5, 20, 0, 0)

	require.Len(t, signals, 1)
	assert.Equal(t, engine.SignalBuy, signals[0].Type)
	// the first bar where both averages are defined
	assert.Equal(t, barsFromCloses(closes)[19].Date, signals[0].Date)
}

func TestDetectFlatSeriesNoSignals(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}

	assert.Empty(t, detect(closes, 5, 20, 0, 0))
}

func TestDetectBuyThenSell(t *testing.T) {
	closes := make([]float64, 0, 120)
	for i := 0; i < 60; i++ {
		closes = append(closes, 100+float64(i))
	}
	for i := 0; i < 60; i++ {
		closes = append(closes, 160-float64(i)*1.5)
	}

	signals := detect(closes, 5, 20, 0, 0)

	require.Len(t, signals, 2)
	assert.Equal(t, engine.SignalBuy, signals[0].Type)
	assert.Equal(t, engine.SignalSell, signals[1].Type)
	assert.True(t, signals[0].Date.Before(signals[1].Date))
}

func TestDetectConfirmationDelaysAndFilters(t *testing.T) {
	closes := make([]float64, 160)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	unconfirmed := detect(closes, 5, 20, 0, 0)
	confirmed := detect(closes, 5, 20, 3, 0)

	require.NotEmpty(t, unconfirmed)
	require.NotEmpty(t, confirmed)
	// confirmation moves the emission date later, never earlier
	assert.True(t, confirmed[0].Date.After(unconfirmed[0].Date))
	assert.Equal(t, unconfirmed[0].Date.AddDate(0, 0, 3), confirmed[0].Date)
}

func TestDetectConfirmationRejectsReversal(t *testing.T) {
	// one-day spike crosses the averages, then collapses before confirmation
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 - float64(i)*0.1
	}
	closes[40] = 130

	raw := detect(closes, 5, 20, 0, 0)
	conf := detect(closes, 5, 20, 5, 0)

	var rawBuys int
	for _, s := range raw {
		if s.Type == engine.SignalBuy {
			rawBuys++
		}
	}
	assert.Greater(t, rawBuys, 0)
	for _, s := range conf {
		assert.NotEqual(t, engine.SignalBuy, s.Type)
	}
}

func TestDetectMinCrossGapSuppressesSameType(t *testing.T) {
	// oscillating series producing repeated same-type crossings
	closes := make([]float64, 240)
	for i := range closes {
		base := 100.0
		if (i/15)%2 == 0 {
			base = 110
		}
		closes[i] = base
	}

	free := detect(closes, 5, 20, 0, 0)
	gapped := detect(closes, 5, 20, 0, 90)

	require.NotEmpty(t, free)
	assert.Less(t, len(gapped), len(free))

	lastByType := map[engine.SignalType]time.Time{}
	for _, s := range gapped {
		if prev, ok := lastByType[s.Type]; ok {
			days := int(s.Date.Sub(prev).Hours() / 24)
			assert.GreaterOrEqual(t, days, 90)
		}
		lastByType[s.Type] = s.Date
	}
}

func TestDetectMismatchedLengths(t *testing.T) {
	bars := barsFromCloses([]float64{1, 2, 3})
	assert.Nil(t, Detect(bars, []float64{1, 2}, []float64{1, 2, 3}, 0, 0))
	assert.Nil(t, Detect(nil, nil, nil, 0, 0))
}
