package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"trendlab/config"
	"trendlab/internal/dto"
	"trendlab/internal/engine"
	"trendlab/internal/engine/eval"
	"trendlab/internal/model"
	"trendlab/internal/repository"
	"trendlab/pkg/logger"

	"gorm.io/datatypes"
)

// BacktestService turns an API or CLI request into a batch evaluation, then
// persists every produced artifact on disk and its header row in the
// database.
type BacktestService interface {
	Run(ctx context.Context, req dto.BacktestRequest) (*dto.BacktestResponse, error)
	ListRuns(ctx context.Context, symbol, variant string, limit int) ([]model.BacktestRun, error)
	GetRun(ctx context.Context, runID string) (*eval.RunArtifact, error)
}

type backtestService struct {
	cfg             *config.Config
	logger          *logger.Logger
	stockData       StockDataService
	backtestRunRepo repository.BacktestRunRepository
	artifactRepo    repository.ArtifactRepository
}

func NewBacktestService(
	cfg *config.Config,
	log *logger.Logger,
	stockData StockDataService,
	backtestRunRepo repository.BacktestRunRepository,
	artifactRepo repository.ArtifactRepository,
) BacktestService {
	return &backtestService{
		cfg:             cfg,
		logger:          log,
		stockData:       stockData,
		backtestRunRepo: backtestRunRepo,
		artifactRepo:    artifactRepo,
	}
}

func (s *backtestService) Run(ctx context.Context, req dto.BacktestRequest) (*dto.BacktestResponse, error) {
	base, err := s.buildBase(req)
	if err != nil {
		return nil, err
	}

	symbols := req.SortedSymbols()
	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = s.cfg.Backtest.Concurrency
	}

	loader := func(ctx context.Context, symbol string) ([]engine.Bar, error) {
		bars, _, err := s.stockData.GetStockData(ctx, dto.GetStockDataParam{Symbol: symbol})
		return bars, err
	}

	started := time.Now()
	res, err := eval.EvaluateBatch(ctx, loader, eval.BatchRequest{
		Base:        base,
		Symbols:     symbols,
		Variants:    req.Variants,
		Concurrency: concurrency,
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "batch evaluation finished",
		logger.IntField("symbols", len(symbols)),
		logger.IntField("artifacts", len(res.Artifacts)),
		logger.IntField("skipped", len(res.Skipped)),
		logger.DurationField("elapsed", time.Since(started)))

	resp := &dto.BacktestResponse{Rows: res.Rows, Skipped: res.Skipped}
	for _, art := range res.Artifacts {
		runSummary, err := s.persist(ctx, art)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to persist run",
				logger.StringField("symbol", art.Symbol),
				logger.StringField("variant", art.Variant),
				logger.ErrorField(err))
			resp.Skipped = append(resp.Skipped, eval.SkippedRun{
				Symbol:  art.Symbol,
				Variant: art.Variant,
				Reason:  fmt.Sprintf("persist: %v", err),
			})
			continue
		}
		resp.Runs = append(resp.Runs, *runSummary)
	}
	return resp, nil
}

func (s *backtestService) buildBase(req dto.BacktestRequest) (eval.Request, error) {
	split, err := parseSplit(req)
	if err != nil {
		return eval.Request{}, err
	}
	objective := req.Objective
	if objective == "" {
		objective = s.cfg.Backtest.Objective
	}
	return eval.Request{
		Config:        engine.DefaultConfig(),
		Split:         split,
		UseExits:      req.UseExits,
		GridSearch:    req.GridSearch,
		ShortGrid:     req.ShortGrid,
		LongGrid:      req.LongGrid,
		Objective:     objective,
		AllowEmptyIS:  req.AllowEmptyIS,
		AllowEmptyOOS: req.AllowEmptyOOS,
	}, nil
}

func parseSplit(req dto.BacktestRequest) (eval.Split, error) {
	var split eval.Split
	var err error
	if split.ISStart, err = parseSplitDate("is_start", req.ISStart); err != nil {
		return split, err
	}
	if split.ISEnd, err = parseSplitDate("is_end", req.ISEnd); err != nil {
		return split, err
	}
	if split.OOSStart, err = parseSplitDate("oos_start", req.OOSStart); err != nil {
		return split, err
	}
	if split.OOSEnd, err = parseSplitDate("oos_end", req.OOSEnd); err != nil {
		return split, err
	}
	return split, nil
}

func parseSplitDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, engine.NewConfigError(field, "must be a YYYY-MM-DD date")
	}
	return t.UTC(), nil
}

func (s *backtestService) persist(ctx context.Context, art *eval.RunArtifact) (*dto.BacktestRunSummary, error) {
	runID := runIDFor(art)
	path, err := s.artifactRepo.Save(runID, art)
	if err != nil {
		return nil, err
	}

	cfgJSON, err := json.Marshal(art.Config)
	if err != nil {
		return nil, err
	}
	summaryJSON, err := json.Marshal(art.Summary)
	if err != nil {
		return nil, err
	}
	run := &model.BacktestRun{
		RunID:     runID,
		Symbol:    art.Symbol,
		Variant:   art.Variant,
		Objective: s.cfg.Backtest.Objective,
		Config:    datatypes.JSON(cfgJSON),
		Summary:   datatypes.JSON(summaryJSON),
		Path:      path,
	}
	if err := s.backtestRunRepo.Save(ctx, run); err != nil {
		return nil, err
	}

	summary := &dto.BacktestRunSummary{
		RunID:   runID,
		Symbol:  art.Symbol,
		Variant: art.Variant,
		Pair:    fmt.Sprintf("%d:%d", art.Pair.Short, art.Pair.Long),
		Path:    path,
	}
	// The headline summary is the out-of-sample strategy row.
	for _, row := range art.Summary {
		if row.Segment == "oos" && row.Series == "strategy" {
			summary.Summary = row.Stats
			break
		}
	}
	return summary, nil
}

func (s *backtestService) ListRuns(ctx context.Context, symbol, variant string, limit int) ([]model.BacktestRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.backtestRunRepo.Get(ctx, repository.GetBacktestRunsParam{
		Symbol:  symbol,
		Variant: variant,
		Limit:   limit,
	})
}

// GetRun reloads the full on-disk artifact for a persisted run.
func (s *backtestService) GetRun(ctx context.Context, runID string) (*eval.RunArtifact, error) {
	run, err := s.backtestRunRepo.FindByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}
	return s.artifactRepo.Load(run.RunID)
}

// runIDFor derives a stable identifier from the locked configuration, so
// re-running an identical request overwrites its previous artifact.
func runIDFor(art *eval.RunArtifact) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|", art.Symbol, art.Variant)
	if cfg, err := json.Marshal(art.Config); err == nil {
		h.Write(cfg)
	}
	return fmt.Sprintf("%s-%s-%s", art.Symbol, art.Variant, hex.EncodeToString(h.Sum(nil))[:12])
}
