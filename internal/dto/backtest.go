package dto

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"trendlab/internal/engine"
	"trendlab/internal/engine/eval"
	"trendlab/internal/engine/metrics"
)

const (
	maxEnsemblePairs = 12
	maxWindow        = 2000
)

// StockQuery carries the query parameters of the stock-data endpoint.
type StockQuery struct {
	Code               string  `query:"code"`
	StartDate          string  `query:"start_date"`
	EndDate            string  `query:"end_date"`
	ShortWindow        int     `query:"short_window" validate:"min=1,max=500"`
	LongWindow         int     `query:"long_window" validate:"min=1,max=500"`
	IncludeMeta        bool    `query:"include_meta"`
	ForceRefresh       bool    `query:"force_refresh"`
	IncludePerformance bool    `query:"include_performance"`
	GenConfirmBars     int     `query:"gen_confirm_bars" validate:"min=0,max=50"`
	GenMinCrossGap     int     `query:"gen_min_cross_gap" validate:"min=0,max=365"`
	StrategyMode       string  `query:"strategy_mode" validate:"omitempty,oneof=basic advanced"`
	EnsemblePairs      string  `query:"ensemble_pairs"`
	RegimeWindow       int     `query:"regime_window" validate:"min=0,max=2000"`
	ADXWindow          int     `query:"adx_window" validate:"min=0,max=500"`
	ADXThreshold       float64 `query:"adx_threshold" validate:"min=0,max=100"`
	TargetVolDaily     float64 `query:"target_vol_daily" validate:"min=0,max=1"`
	MaxLeverage        float64 `query:"max_leverage" validate:"min=0,max=10"`
}

// Defaults fills zero values with the documented endpoint defaults. Echo's
// binder leaves absent params at their zero value, so defaults are applied
// before validation.
func (q *StockQuery) Defaults() {
	if q.Code == "" {
		q.Code = "AAPL"
	}
	if q.ShortWindow == 0 {
		q.ShortWindow = 5
	}
	if q.LongWindow == 0 {
		q.LongWindow = 20
	}
	if q.StrategyMode == "" {
		q.StrategyMode = "basic"
	}
}

// SignalsQuery extends the stock-data parameters with signal filtering.
type SignalsQuery struct {
	StockQuery
	FilterSignalType string `query:"filter_signal_type" validate:"omitempty,oneof=all BUY SELL"`
	FilterLimit      int    `query:"filter_limit" validate:"omitempty,min=1,max=5000"`
	FilterSort       string `query:"filter_sort" validate:"omitempty,oneof=asc desc"`
}

func (q *SignalsQuery) Defaults() {
	q.StockQuery.Defaults()
	if q.FilterSignalType == "" {
		q.FilterSignalType = "all"
	}
	if q.FilterSort == "" {
		q.FilterSort = "asc"
	}
}

// ParseEnsemblePairs parses a pair list such as "5:20,10:50" into window
// pairs. Duplicates are removed while preserving first occurrence order.
func ParseEnsemblePairs(raw string) ([]engine.WindowPair, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	seen := make(map[engine.WindowPair]bool)
	var pairs []engine.WindowPair
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid ensemble pair %q, expected short:long", part)
		}
		short, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid short window in pair %q", part)
		}
		long, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid long window in pair %q", part)
		}
		if short < 1 || long < 1 {
			return nil, fmt.Errorf("windows must be positive in pair %q", part)
		}
		if short >= long {
			return nil, fmt.Errorf("short window must be less than long window in pair %q", part)
		}
		if short > maxWindow || long > maxWindow {
			return nil, fmt.Errorf("window exceeds %d in pair %q", maxWindow, part)
		}
		p := engine.WindowPair{Short: short, Long: long}
		if seen[p] {
			continue
		}
		seen[p] = true
		pairs = append(pairs, p)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("ensemble_pairs contains no valid pairs")
	}
	if len(pairs) > maxEnsemblePairs {
		return nil, fmt.Errorf("ensemble_pairs has %d pairs, maximum is %d", len(pairs), maxEnsemblePairs)
	}
	return pairs, nil
}

// BacktestRequest is the body of the backtest endpoint and the input to the
// backtest CLI command.
type BacktestRequest struct {
	Symbols       []string `json:"symbols" validate:"required,min=1,dive,required"`
	Variants      []string `json:"variants"`
	ISStart       string   `json:"is_start" validate:"required"`
	ISEnd         string   `json:"is_end"`
	OOSStart      string   `json:"oos_start" validate:"required"`
	OOSEnd        string   `json:"oos_end"`
	GridSearch    bool     `json:"grid_search"`
	ShortGrid     []int    `json:"short_grid"`
	LongGrid      []int    `json:"long_grid"`
	Objective     string   `json:"objective"`
	UseExits      bool     `json:"use_exits"`
	AllowEmptyIS  bool     `json:"allow_empty_is"`
	AllowEmptyOOS bool     `json:"allow_empty_oos"`
	Concurrency   int      `json:"concurrency" validate:"min=0,max=64"`
}

// BacktestRunSummary is one persisted run in the backtest response.
type BacktestRunSummary struct {
	RunID   string          `json:"run_id"`
	Symbol  string          `json:"symbol"`
	Variant string          `json:"variant"`
	Pair    string          `json:"pair"`
	Path    string          `json:"path"`
	Summary metrics.Summary `json:"summary"`
}

// BacktestResponse aggregates the rows and skips of one batch run.
type BacktestResponse struct {
	Rows    []eval.SummaryRow    `json:"rows"`
	Runs    []BacktestRunSummary `json:"runs"`
	Skipped []eval.SkippedRun    `json:"skipped"`
}

// SortedSymbols returns the request symbols deduplicated and sorted, which
// keeps run IDs stable across retries.
func (r *BacktestRequest) SortedSymbols() []string {
	seen := make(map[string]bool, len(r.Symbols))
	var out []string
	for _, s := range r.Symbols {
		s = strings.TrimSpace(strings.ToUpper(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
