// Package eval drives symbol x variant evaluations with in-sample /
// out-of-sample isolation. Parameter selection only ever sees in-sample
// data; the winning pair is locked before anything out-of-sample is scored.
package eval

import (
	"encoding/json"
	"math"
	"time"

	"trendlab/internal/engine"
	"trendlab/internal/engine/exposure"
	"trendlab/internal/engine/indicator"
	"trendlab/internal/engine/metrics"
	"trendlab/internal/engine/signal"
	"trendlab/internal/engine/simulator"
)

// Split bounds the in-sample and out-of-sample windows. A zero end time
// leaves that window open to the last available bar.
type Split struct {
	ISStart  time.Time `json:"is_start"`
	ISEnd    time.Time `json:"is_end"`
	OOSStart time.Time `json:"oos_start"`
	OOSEnd   time.Time `json:"oos_end"`
}

// Validate checks internal ordering and that the windows do not overlap.
func (s Split) Validate() error {
	if s.ISStart.IsZero() || s.OOSStart.IsZero() {
		return engine.NewConfigError("split", "is_start and oos_start are required")
	}
	if !s.ISEnd.IsZero() && s.ISEnd.Before(s.ISStart) {
		return engine.NewConfigError("is_end", "must not precede is_start")
	}
	if !s.OOSEnd.IsZero() && s.OOSEnd.Before(s.OOSStart) {
		return engine.NewConfigError("oos_end", "must not precede oos_start")
	}
	if s.ISEnd.IsZero() || !s.ISEnd.Before(s.OOSStart) {
		return engine.NewConfigError("oos_start", "out-of-sample window must start after is_end")
	}
	return nil
}

func (s Split) isSegment() metrics.Segment {
	return segment(s.ISStart, s.ISEnd)
}

func (s Split) oosSegment() metrics.Segment {
	return segment(s.OOSStart, s.OOSEnd)
}

func segment(start, end time.Time) metrics.Segment {
	seg := metrics.Segment{Start: start}
	if !end.IsZero() {
		e := end
		seg.End = &e
	}
	return seg
}

// Request is one evaluation unit: a symbol, a variant, a base configuration
// and the split to score it on. When GridSearch is set the short/long grids
// replace the configured pair with the in-sample winner.
type Request struct {
	Symbol        string        `json:"symbol"`
	Variant       string        `json:"variant"`
	Config        engine.Config `json:"config"`
	Split         Split         `json:"split"`
	UseExits      bool          `json:"use_exits"`
	GridSearch    bool          `json:"grid_search"`
	ShortGrid     []int         `json:"short_grid,omitempty"`
	LongGrid      []int         `json:"long_grid,omitempty"`
	Objective     string        `json:"objective,omitempty"`
	AllowEmptyIS  bool          `json:"allow_empty_is"`
	AllowEmptyOOS bool          `json:"allow_empty_oos"`
}

// GridRow records one evaluated candidate, valid or not. Invalid candidates
// keep their NaN score so the detail table shows why they lost.
type GridRow struct {
	Short int     `json:"short"`
	Long  int     `json:"long"`
	Score float64 `json:"score"`
	Valid bool    `json:"valid"`
}

// gridRowJSON serializes a NaN score as null; encoding/json rejects NaN.
type gridRowJSON struct {
	Short int      `json:"short"`
	Long  int      `json:"long"`
	Score *float64 `json:"score"`
	Valid bool     `json:"valid"`
}

func (g GridRow) MarshalJSON() ([]byte, error) {
	w := gridRowJSON{Short: g.Short, Long: g.Long, Valid: g.Valid}
	if !math.IsNaN(g.Score) {
		score := g.Score
		w.Score = &score
	}
	return json.Marshal(w)
}

func (g *GridRow) UnmarshalJSON(data []byte) error {
	var w gridRowJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	g.Short = w.Short
	g.Long = w.Long
	g.Valid = w.Valid
	if w.Score != nil {
		g.Score = *w.Score
	} else {
		g.Score = math.NaN()
	}
	return nil
}

// SummaryRow is one metrics block keyed by symbol, variant, segment and
// series ("strategy" or "benchmark").
type SummaryRow struct {
	Symbol  string          `json:"symbol"`
	Variant string          `json:"variant"`
	Segment string          `json:"segment"`
	Series  string          `json:"series"`
	Stats   metrics.Summary `json:"stats"`
}

// RunArtifact is the complete write-once output of one evaluation: the
// resolved configuration, the locked window pair, all summary rows, the
// per-day series and the grid detail table.
type RunArtifact struct {
	Symbol    string                 `json:"symbol"`
	Variant   string                 `json:"variant"`
	Config    engine.EffectiveConfig `json:"config"`
	Pair      engine.WindowPair      `json:"pair"`
	Summary   []SummaryRow           `json:"summary"`
	Daily     []engine.DailyRecord   `json:"daily"`
	Benchmark []engine.DailyRecord   `json:"benchmark"`
	Fills     []engine.Fill          `json:"fills"`
	Trades    []engine.ClosedTrade   `json:"trades"`
	Signals   []engine.SignalEvent   `json:"signals"`
	Grid      []GridRow              `json:"grid,omitempty"`
}

const (
	segIS  = "is"
	segOOS = "oos"

	seriesStrategy  = "strategy"
	seriesBenchmark = "benchmark"
)

// validateShared checks the parts of a request that do not depend on the
// symbol or variant: the split and, under grid search, the grids and the
// objective. In a batch these are identical for every unit, so a failure
// here is the caller's error and must never degrade into per-unit skips.
func (r Request) validateShared() error {
	if err := r.Split.Validate(); err != nil {
		return err
	}
	if r.GridSearch {
		if len(r.ShortGrid) == 0 || len(r.LongGrid) == 0 {
			return engine.NewConfigError("grid", "short and long grids must be non-empty")
		}
		switch r.Objective {
		case engine.ObjectiveSharpe, engine.ObjectiveCalmar, engine.ObjectiveCAGR:
		default:
			return engine.NewConfigError("objective", "must be one of sharpe, calmar, cagr")
		}
	}
	return nil
}

// Evaluate runs one request over the full bar history and returns the final
// artifact. Indicators warm up on everything before the in-sample boundary;
// only the metric segments are restricted to the split.
func Evaluate(bars []engine.Bar, req Request) (*RunArtifact, error) {
	cfg, err := engine.ApplyVariant(req.Config, req.Variant, req.UseExits)
	if err != nil {
		return nil, err
	}
	if err := req.validateShared(); err != nil {
		return nil, err
	}

	eff, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	if err := checkCoverage(bars, segIS, req.Split.isSegment(), req.AllowEmptyIS && !req.GridSearch); err != nil {
		return nil, err
	}
	if err := checkCoverage(bars, segOOS, req.Split.oosSegment(), req.AllowEmptyOOS); err != nil {
		return nil, err
	}

	pair := engine.WindowPair{Short: eff.ShortWindow, Long: eff.LongWindow}
	var grid []GridRow
	if req.GridSearch {
		pair, grid, err = searchGrid(bars, eff, req)
		if err != nil {
			return nil, err
		}
	}

	locked := eff
	locked.ShortWindow = pair.Short
	locked.LongWindow = pair.Long
	run, err := runOnce(bars, locked)
	if err != nil {
		return nil, err
	}

	art := &RunArtifact{
		Symbol:    req.Symbol,
		Variant:   req.Variant,
		Config:    locked,
		Pair:      pair,
		Daily:     run.sim.Daily,
		Benchmark: run.sim.Benchmark,
		Fills:     run.sim.Fills,
		Trades:    run.sim.Trades,
		Signals:   run.signals,
		Grid:      grid,
	}
	for _, seg := range []struct {
		name string
		seg  metrics.Segment
	}{
		{segIS, req.Split.isSegment()},
		{segOOS, req.Split.oosSegment()},
	} {
		daily, fills, trades := metrics.Slice(run.sim.Daily, run.sim.Fills, run.sim.Trades, seg.seg)
		art.Summary = append(art.Summary, SummaryRow{
			Symbol:  req.Symbol,
			Variant: req.Variant,
			Segment: seg.name,
			Series:  seriesStrategy,
			Stats:   metrics.Summarize(daily, fills, trades, locked.TradingDaysPerYear),
		})
		bench, _, _ := metrics.Slice(run.sim.Benchmark, nil, nil, seg.seg)
		art.Summary = append(art.Summary, SummaryRow{
			Symbol:  req.Symbol,
			Variant: req.Variant,
			Segment: seg.name,
			Series:  seriesBenchmark,
			Stats:   metrics.Summarize(bench, nil, nil, locked.TradingDaysPerYear),
		})
	}
	return art, nil
}

type runResult struct {
	sim     *simulator.Result
	signals []engine.SignalEvent
}

// runOnce executes the full pipeline for one locked configuration.
func runOnce(bars []engine.Bar, eff engine.EffectiveConfig) (*runResult, error) {
	closes := indicator.Closes(bars)
	maShort := indicator.SMA(closes, eff.ShortWindow)
	maLong := indicator.SMA(closes, eff.LongWindow)
	signals := signal.Detect(bars, maShort, maLong, eff.ConfirmBars, eff.MinCrossGap)
	target := exposure.Target(bars, signals, eff)
	sim, err := simulator.Run(bars, target, eff)
	if err != nil {
		return nil, err
	}
	return &runResult{sim: sim, signals: signals}, nil
}

// searchGrid scores every short<long candidate on the in-sample segment only
// and returns the winner. A NaN objective is invalid and can never win; ties
// keep the earliest-seen incumbent. When every candidate is invalid the
// configured default pair is returned.
func searchGrid(bars []engine.Bar, eff engine.EffectiveConfig, req Request) (engine.WindowPair, []GridRow, error) {
	isSeg := req.Split.isSegment()
	best := engine.WindowPair{Short: eff.ShortWindow, Long: eff.LongWindow}
	bestScore := math.Inf(-1)
	found := false
	var rows []GridRow

	for _, s := range req.ShortGrid {
		for _, l := range req.LongGrid {
			if s >= l {
				continue
			}
			cand := eff
			cand.ShortWindow = s
			cand.LongWindow = l
			run, err := runOnce(bars, cand)
			if err != nil {
				return best, rows, err
			}
			daily, fills, trades := metrics.Slice(run.sim.Daily, run.sim.Fills, run.sim.Trades, isSeg)
			score := objectiveScore(metrics.Summarize(daily, fills, trades, eff.TradingDaysPerYear), req.Objective)
			valid := !math.IsNaN(score)
			rows = append(rows, GridRow{Short: s, Long: l, Score: score, Valid: valid})
			if valid && score > bestScore {
				best = engine.WindowPair{Short: s, Long: l}
				bestScore = score
				found = true
			}
		}
	}
	if !found {
		best = engine.WindowPair{Short: eff.ShortWindow, Long: eff.LongWindow}
	}
	return best, rows, nil
}

func objectiveScore(s metrics.Summary, objective string) float64 {
	switch objective {
	case engine.ObjectiveCalmar:
		return s.Calmar
	case engine.ObjectiveCAGR:
		return s.CAGR
	default:
		return s.Sharpe
	}
}

// checkCoverage fails fast when a required segment contains zero bars,
// reporting the range the data actually covers.
func checkCoverage(bars []engine.Bar, name string, seg metrics.Segment, allowEmpty bool) error {
	if allowEmpty {
		return nil
	}
	for _, b := range bars {
		if seg.Contains(b.Date) {
			return nil
		}
	}
	e := &engine.InsufficientDataError{
		Segment:    name,
		Start:      seg.Start,
		HasAnyData: len(bars) > 0,
	}
	if seg.End != nil {
		e.End = *seg.End
	}
	if len(bars) > 0 {
		e.DataMin = bars[0].Date
		e.DataMax = bars[len(bars)-1].Date
	}
	return e
}
