package service

import (
	"context"
	"math"
	"sort"
	"time"

	"trendlab/config"
	"trendlab/internal/dto"
	"trendlab/internal/engine"
	"trendlab/internal/engine/exposure"
	"trendlab/internal/engine/indicator"
	"trendlab/internal/engine/metrics"
	"trendlab/internal/engine/signal"
	"trendlab/internal/engine/simulator"
	"trendlab/pkg/logger"
)

// StrategyService computes on-demand indicator, signal and performance views
// over the local price store. It never persists anything; the backtest
// service owns durable runs.
type StrategyService interface {
	GetStockData(ctx context.Context, query dto.StockQuery) (*dto.StockDataResponse, *dto.DataMeta, error)
	GetSignals(ctx context.Context, query dto.SignalsQuery) (*dto.SignalsResponse, *dto.DataMeta, error)
}

type strategyService struct {
	cfg       *config.Config
	logger    *logger.Logger
	stockData StockDataService
}

func NewStrategyService(cfg *config.Config, log *logger.Logger, stockData StockDataService) StrategyService {
	return &strategyService{cfg: cfg, logger: log, stockData: stockData}
}

func (s *strategyService) GetStockData(ctx context.Context, query dto.StockQuery) (*dto.StockDataResponse, *dto.DataMeta, error) {
	cfg, err := buildConfig(query)
	if err != nil {
		return nil, nil, err
	}
	eff, err := cfg.Resolve()
	if err != nil {
		return nil, nil, err
	}

	bars, meta, err := s.loadBars(ctx, query)
	if err != nil {
		return nil, meta, err
	}

	closes := indicator.Closes(bars)
	maShort := indicator.SMA(closes, eff.ShortWindow)
	maLong := indicator.SMA(closes, eff.LongWindow)
	signals := signal.Detect(bars, maShort, maLong, eff.ConfirmBars, eff.MinCrossGap)

	resp := &dto.StockDataResponse{
		Code:    query.Code,
		Rows:    buildRows(bars, maShort, maLong),
		Signals: signals,
	}
	if query.IncludePerformance {
		perf, err := s.performance(bars, signals, eff)
		if err != nil {
			return nil, meta, err
		}
		resp.Performance = perf
	}
	if query.IncludeMeta {
		resp.Meta = meta
	}
	return resp, meta, nil
}

func (s *strategyService) GetSignals(ctx context.Context, query dto.SignalsQuery) (*dto.SignalsResponse, *dto.DataMeta, error) {
	cfg, err := buildConfig(query.StockQuery)
	if err != nil {
		return nil, nil, err
	}
	eff, err := cfg.Resolve()
	if err != nil {
		return nil, nil, err
	}

	bars, meta, err := s.loadBars(ctx, query.StockQuery)
	if err != nil {
		return nil, meta, err
	}

	closes := indicator.Closes(bars)
	maShort := indicator.SMA(closes, eff.ShortWindow)
	maLong := indicator.SMA(closes, eff.LongWindow)
	signals := signal.Detect(bars, maShort, maLong, eff.ConfirmBars, eff.MinCrossGap)
	generated := len(signals)

	if query.FilterSignalType != "" && query.FilterSignalType != "all" {
		var kept []engine.SignalEvent
		for _, sig := range signals {
			if string(sig.Type) == query.FilterSignalType {
				kept = append(kept, sig)
			}
		}
		signals = kept
	}
	if query.FilterSort == "desc" {
		sort.Slice(signals, func(i, j int) bool { return signals[i].Date.After(signals[j].Date) })
	}
	if query.FilterLimit > 0 && len(signals) > query.FilterLimit {
		signals = signals[:query.FilterLimit]
	}

	resp := &dto.SignalsResponse{
		Signals: signals,
		Meta: dto.SignalsMeta{
			GeneratedCount: generated,
			ReturnedCount:  len(signals),
			Params: map[string]interface{}{
				"code":               query.Code,
				"short_window":       eff.ShortWindow,
				"long_window":        eff.LongWindow,
				"gen_confirm_bars":   eff.ConfirmBars,
				"gen_min_cross_gap":  eff.MinCrossGap,
				"strategy_mode":      query.StrategyMode,
				"filter_signal_type": query.FilterSignalType,
				"filter_sort":        query.FilterSort,
				"filter_limit":       query.FilterLimit,
			},
		},
	}
	return resp, meta, nil
}

func (s *strategyService) loadBars(ctx context.Context, query dto.StockQuery) ([]engine.Bar, *dto.DataMeta, error) {
	param := dto.GetStockDataParam{Symbol: query.Code, ForceRefresh: query.ForceRefresh}
	if t, ok := parseQueryDate(query.StartDate); ok {
		param.StartDate = &t
	}
	if t, ok := parseQueryDate(query.EndDate); ok {
		param.EndDate = &t
	}
	return s.stockData.GetStockData(ctx, param)
}

func (s *strategyService) performance(bars []engine.Bar, signals []engine.SignalEvent, eff engine.EffectiveConfig) (*dto.PerformanceBlock, error) {
	target := exposure.Target(bars, signals, eff)
	sim, err := simulator.Run(bars, target, eff)
	if err != nil {
		return nil, err
	}
	return &dto.PerformanceBlock{
		Strategy:  metrics.Summarize(sim.Daily, sim.Fills, sim.Trades, eff.TradingDaysPerYear),
		Benchmark: metrics.Summarize(sim.Benchmark, nil, nil, eff.TradingDaysPerYear),
	}, nil
}

// buildConfig maps query parameters onto a strategy configuration. Basic mode
// keeps every optional module off; advanced mode enables a module when its
// parameter is present.
func buildConfig(q dto.StockQuery) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	cfg.ShortWindow = q.ShortWindow
	cfg.LongWindow = q.LongWindow
	cfg.ConfirmBars = q.GenConfirmBars
	cfg.MinCrossGap = q.GenMinCrossGap

	if q.StrategyMode == "advanced" {
		if q.EnsemblePairs != "" {
			pairs, err := dto.ParseEnsemblePairs(q.EnsemblePairs)
			if err != nil {
				return cfg, engine.NewConfigError("ensemble_pairs", err.Error())
			}
			cfg.UseEnsemble = true
			cfg.EnsemblePairs = pairs
		}
		if q.RegimeWindow > 0 {
			cfg.UseRegimeFilter = true
			cfg.RegimeMAWindow = q.RegimeWindow
		}
		if q.ADXWindow > 0 {
			cfg.UseADXFilter = true
			cfg.ADXWindow = q.ADXWindow
			if q.ADXThreshold > 0 {
				cfg.ADXThreshold = q.ADXThreshold
			}
		}
		if q.TargetVolDaily > 0 {
			cfg.UseVolTargeting = true
			cfg.TargetVolAnnual = 0
			cfg.TargetVol = q.TargetVolDaily
		}
		if q.MaxLeverage > 0 {
			cfg.MaxLeverage = q.MaxLeverage
		}
	}
	return cfg, nil
}

func buildRows(bars []engine.Bar, maShort, maLong []float64) []dto.StockRow {
	rows := make([]dto.StockRow, len(bars))
	for i, b := range bars {
		rows[i] = dto.StockRow{
			Date:    b.Date,
			Open:    b.Open,
			High:    b.High,
			Low:     b.Low,
			Close:   b.Close,
			Volume:  b.Volume,
			MAShort: maValue(maShort, i),
			MALong:  maValue(maLong, i),
		}
	}
	return rows
}

func maValue(series []float64, i int) *float64 {
	if i >= len(series) || math.IsNaN(series[i]) {
		return nil
	}
	v := series[i]
	return &v
}

func parseQueryDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
