package eval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendlab/internal/engine"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func barsFromCloses(closes []float64) []engine.Bar {
	bars := make([]engine.Bar, len(closes))
	for i, c := range closes {
		bars[i] = engine.Bar{
			Date:  day(i),
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

func splitAt(isStart, isEnd, oosStart, oosEnd int) Split {
	return Split{
		ISStart:  day(isStart),
		ISEnd:    day(isEnd),
		OOSStart: day(oosStart),
		OOSEnd:   day(oosEnd),
	}
}

func TestSplitValidate(t *testing.T) {
	tests := []struct {
		name  string
		split Split
		ok    bool
	}{
		{"valid", splitAt(0, 49, 50, 99), true},
		{"is end before start", splitAt(10, 5, 50, 99), false},
		{"oos end before start", splitAt(0, 49, 90, 60), false},
		{"overlapping windows", splitAt(0, 60, 50, 99), false},
		{"missing is end", Split{ISStart: day(0), OOSStart: day(50)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.split.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				var cfgErr *engine.ConfigError
				require.Error(t, err)
				assert.True(t, errors.As(err, &cfgErr))
			}
		})
	}
}

func baseRequest() Request {
	return Request{
		Symbol:  "TEST",
		Variant: engine.VariantBaseline,
		Config:  engine.DefaultConfig(),
		Split:   splitAt(0, 149, 150, 299),
	}
}

func TestEvaluateRisingSeries(t *testing.T) {
	bars := risingBars(300)
	art, err := Evaluate(bars, baseRequest())
	require.NoError(t, err)

	// one early buy, never a sell
	require.Len(t, art.Signals, 1)
	assert.Equal(t, engine.SignalBuy, art.Signals[0].Type)

	require.Len(t, art.Daily, 300)
	for _, d := range art.Daily {
		assert.False(t, math.IsNaN(d.Value))
		assert.Greater(t, d.Value, 0.0)
	}
	for _, b := range art.Benchmark {
		assert.False(t, math.IsNaN(b.Value))
		assert.Greater(t, b.Value, 0.0)
	}

	// is/oos for both strategy and benchmark
	require.Len(t, art.Summary, 4)
	segments := map[string]int{}
	for _, row := range art.Summary {
		segments[row.Segment+"/"+row.Series]++
	}
	assert.Equal(t, 1, segments["is/strategy"])
	assert.Equal(t, 1, segments["is/benchmark"])
	assert.Equal(t, 1, segments["oos/strategy"])
	assert.Equal(t, 1, segments["oos/benchmark"])
}

func TestEvaluateConstantSeries(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100
	}
	req := baseRequest()
	req.Split = splitAt(0, 49, 50, 99)

	art, err := Evaluate(barsFromCloses(closes), req)
	require.NoError(t, err)

	assert.Empty(t, art.Signals)
	for _, row := range art.Summary {
		if row.Series != seriesStrategy {
			continue
		}
		assert.Equal(t, 0.0, row.Stats.MaxDrawdown)
		assert.True(t, math.IsNaN(row.Stats.Sharpe), "flat curve sharpe must stay NaN")
	}
}

func TestEvaluateInsufficientData(t *testing.T) {
	bars := risingBars(100)
	req := baseRequest()
	req.Split = splitAt(400, 449, 450, 499)

	_, err := Evaluate(bars, req)
	var dataErr *engine.InsufficientDataError
	require.Error(t, err)
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, "is", dataErr.Segment)
	assert.Contains(t, dataErr.Error(), "2024-01-01")
}

func TestEvaluateAllowEmptyOOS(t *testing.T) {
	bars := risingBars(100)
	req := baseRequest()
	req.Split = splitAt(0, 49, 400, 499)

	_, err := Evaluate(bars, req)
	require.Error(t, err)

	req.AllowEmptyOOS = true
	art, err := Evaluate(bars, req)
	require.NoError(t, err)
	for _, row := range art.Summary {
		if row.Segment == segOOS {
			assert.Equal(t, 0, row.Stats.Bars)
		}
	}
}

func TestEvaluateGridRequiresNonEmptyIS(t *testing.T) {
	bars := risingBars(100)
	req := baseRequest()
	req.Split = splitAt(400, 449, 450, 499)
	req.AllowEmptyIS = true
	req.AllowEmptyOOS = true
	req.GridSearch = true
	req.ShortGrid = []int{5}
	req.LongGrid = []int{20}
	req.Objective = engine.ObjectiveSharpe

	_, err := Evaluate(bars, req)
	var dataErr *engine.InsufficientDataError
	require.Error(t, err)
	assert.True(t, errors.As(err, &dataErr))
}

func TestEvaluateGridPicksValidCandidate(t *testing.T) {
	// trends inside the in-sample window for the small pair, while the large
	// pair never leaves warm-up there and scores NaN
	bars := risingBars(300)
	req := baseRequest()
	req.Split = splitAt(0, 49, 50, 299)
	req.GridSearch = true
	req.ShortGrid = []int{5, 100}
	req.LongGrid = []int{20, 280}
	req.Objective = engine.ObjectiveSharpe

	art, err := Evaluate(bars, req)
	require.NoError(t, err)

	assert.Equal(t, engine.WindowPair{Short: 5, Long: 20}, art.Pair)
	// every candidate with short<long shows up, winners and losers alike
	require.Len(t, art.Grid, 3)
	for _, row := range art.Grid {
		assert.Less(t, row.Short, row.Long)
		if !row.Valid {
			assert.True(t, math.IsNaN(row.Score))
		}
	}
}

func TestEvaluateGridAllInvalidFallsBack(t *testing.T) {
	// constant price: every candidate has an undefined in-sample sharpe
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100
	}
	req := baseRequest()
	req.Split = splitAt(0, 149, 150, 299)
	req.GridSearch = true
	req.ShortGrid = []int{5, 10}
	req.LongGrid = []int{20, 50}
	req.Objective = engine.ObjectiveSharpe

	art, err := Evaluate(barsFromCloses(closes), req)
	require.NoError(t, err)

	assert.Equal(t, engine.WindowPair{Short: 5, Long: 20}, art.Pair)
	for _, row := range art.Grid {
		assert.False(t, row.Valid)
	}
}

func TestEvaluateGridFirstWinsOnTies(t *testing.T) {
	// identical objective scores keep the earliest-seen candidate
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100
	}
	req := baseRequest()
	req.Split = splitAt(0, 149, 150, 299)
	req.GridSearch = true
	req.ShortGrid = []int{5, 6}
	req.LongGrid = []int{20}
	req.Objective = engine.ObjectiveCAGR

	art, err := Evaluate(barsFromCloses(closes), req)
	require.NoError(t, err)

	require.Len(t, art.Grid, 2)
	if art.Grid[0].Valid && art.Grid[1].Valid && art.Grid[0].Score == art.Grid[1].Score {
		assert.Equal(t, art.Grid[0].Short, art.Pair.Short)
	}
}

func TestEvaluateUnknownVariantAndObjective(t *testing.T) {
	bars := risingBars(300)

	req := baseRequest()
	req.Variant = "mystery"
	_, err := Evaluate(bars, req)
	var cfgErr *engine.ConfigError
	require.Error(t, err)
	assert.True(t, errors.As(err, &cfgErr))

	req = baseRequest()
	req.GridSearch = true
	req.ShortGrid = []int{5}
	req.LongGrid = []int{20}
	req.Objective = "sortino"
	_, err = Evaluate(bars, req)
	require.Error(t, err)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestEvaluateIdempotent(t *testing.T) {
	bars := risingBars(300)
	req := baseRequest()
	req.Variant = engine.VariantAdvancedFull
	req.UseExits = true

	first, err := Evaluate(bars, req)
	require.NoError(t, err)
	second, err := Evaluate(bars, req)
	require.NoError(t, err)

	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Daily, second.Daily)
	assert.Equal(t, first.Fills, second.Fills)
}

func TestEvaluateBatchRecordsSkipped(t *testing.T) {
	good := risingBars(300)
	loader := func(_ context.Context, symbol string) ([]engine.Bar, error) {
		if symbol == "BAD" {
			return nil, fmt.Errorf("symbol not found")
		}
		return good, nil
	}

	req := BatchRequest{
		Base:     baseRequest(),
		Symbols:  []string{"GOOD", "BAD"},
		Variants: []string{engine.VariantBaseline},
	}
	res, err := EvaluateBatch(context.Background(), loader, req)
	require.NoError(t, err)

	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, "GOOD", res.Artifacts[0].Symbol)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "BAD", res.Skipped[0].Symbol)
	assert.Contains(t, res.Skipped[0].Reason, "not found")
	assert.Len(t, res.Rows, 4)
}

func TestEvaluateBatchDefaultsVariants(t *testing.T) {
	good := risingBars(300)
	loader := func(_ context.Context, _ string) ([]engine.Bar, error) {
		return good, nil
	}

	res, err := EvaluateBatch(context.Background(), loader, BatchRequest{
		Base:    baseRequest(),
		Symbols: []string{"ONE"},
	})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, len(engine.DefaultVariants()))

	variants := map[string]bool{}
	for _, a := range res.Artifacts {
		variants[a.Variant] = true
	}
	for _, v := range engine.DefaultVariants() {
		assert.True(t, variants[v], v)
	}
}

func TestEvaluateBatchRequiresSymbols(t *testing.T) {
	_, err := EvaluateBatch(context.Background(), nil, BatchRequest{Base: baseRequest()})
	assert.Error(t, err)
}

func TestEvaluateBatchInvalidSharedConfigFailsBatch(t *testing.T) {
	good := risingBars(300)
	loader := func(_ context.Context, _ string) ([]engine.Bar, error) {
		return good, nil
	}

	req := BatchRequest{
		Base:     baseRequest(),
		Symbols:  []string{"A", "B"},
		Variants: []string{engine.VariantBaseline},
	}
	req.Base.Split = splitAt(0, 100, 50, 299)

	res, err := EvaluateBatch(context.Background(), loader, req)
	require.Error(t, err)
	assert.Nil(t, res)

	var cfgErr *engine.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "oos_start", cfgErr.Field)
}

func TestEvaluateBatchEmptyGridFailsBatch(t *testing.T) {
	loader := func(_ context.Context, _ string) ([]engine.Bar, error) {
		return risingBars(300), nil
	}

	base := baseRequest()
	base.GridSearch = true
	base.Objective = engine.ObjectiveSharpe

	_, err := EvaluateBatch(context.Background(), loader, BatchRequest{
		Base:    base,
		Symbols: []string{"A"},
	})
	var cfgErr *engine.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "grid", cfgErr.Field)
}
