package dto

import (
	"strconv"
	"testing"

	"trendlab/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnsemblePairs(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []engine.WindowPair
		wantErr bool
	}{
		{
			name: "single pair",
			raw:  "5:20",
			want: []engine.WindowPair{{Short: 5, Long: 20}},
		},
		{
			name: "multiple pairs with spaces",
			raw:  " 5:20 , 10:50 ",
			want: []engine.WindowPair{{Short: 5, Long: 20}, {Short: 10, Long: 50}},
		},
		{
			name: "duplicates keep first occurrence",
			raw:  "5:20,10:50,5:20",
			want: []engine.WindowPair{{Short: 5, Long: 20}, {Short: 10, Long: 50}},
		},
		{
			name: "empty string means not set",
			raw:  "",
			want: nil,
		},
		{name: "short not less than long", raw: "20:5", wantErr: true},
		{name: "equal windows", raw: "20:20", wantErr: true},
		{name: "not a number", raw: "a:20", wantErr: true},
		{name: "missing colon", raw: "520", wantErr: true},
		{name: "zero window", raw: "0:20", wantErr: true},
		{name: "window too large", raw: "5:2001", wantErr: true},
		{name: "only separators", raw: ",,,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEnsemblePairs(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEnsemblePairsTooMany(t *testing.T) {
	raw := ""
	for i := 1; i <= 13; i++ {
		if raw != "" {
			raw += ","
		}
		raw += "1:" + strconv.Itoa(i+1)
	}
	_, err := ParseEnsemblePairs(raw)
	assert.ErrorContains(t, err, "maximum is 12")
}

func TestStockQueryDefaults(t *testing.T) {
	var q StockQuery
	q.Defaults()
	assert.Equal(t, "AAPL", q.Code)
	assert.Equal(t, 5, q.ShortWindow)
	assert.Equal(t, 20, q.LongWindow)
	assert.Equal(t, "basic", q.StrategyMode)

	q = StockQuery{Code: "msft", ShortWindow: 10, LongWindow: 50, StrategyMode: "advanced"}
	q.Defaults()
	assert.Equal(t, "msft", q.Code)
	assert.Equal(t, 10, q.ShortWindow)
	assert.Equal(t, 50, q.LongWindow)
	assert.Equal(t, "advanced", q.StrategyMode)
}

func TestSignalsQueryDefaults(t *testing.T) {
	var q SignalsQuery
	q.Defaults()
	assert.Equal(t, "all", q.FilterSignalType)
	assert.Equal(t, "asc", q.FilterSort)
	assert.Equal(t, "AAPL", q.Code)
}

func TestBacktestRequestSortedSymbols(t *testing.T) {
	req := BacktestRequest{Symbols: []string{"msft", "AAPL", " aapl ", "", "GOOG"}}
	assert.Equal(t, []string{"AAPL", "GOOG", "MSFT"}, req.SortedSymbols())
}
