package service

import (
	"context"
	"fmt"
	"time"

	"trendlab/config"
	"trendlab/internal/dto"
	"trendlab/internal/engine"
	"trendlab/internal/engine/indicator"
	"trendlab/internal/engine/signal"
	"trendlab/internal/model"
	"trendlab/internal/repository"
	"trendlab/pkg/logger"

	"github.com/robfig/cron/v3"
)

// SchedulerService runs the periodic price-store refresh. One cron entry
// sweeps every known code after each trading day, then mirrors the refreshed
// bars and the recomputed baseline signals into the database.
type SchedulerService interface {
	Start(ctx context.Context) error
	Stop()
	RunRefreshNow(ctx context.Context) error
}

type schedulerService struct {
	cfg          *config.Config
	log          *logger.Logger
	stockData    StockDataService
	priceCSVRepo repository.PriceCSVRepository
	stockRepo    repository.StockRepository
	cron         *cron.Cron
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	stockData StockDataService,
	priceCSVRepo repository.PriceCSVRepository,
	stockRepo repository.StockRepository,
) *schedulerService {
	return &schedulerService{
		cfg:          cfg,
		log:          log,
		stockData:    stockData,
		priceCSVRepo: priceCSVRepo,
		stockRepo:    stockRepo,
		cron:         cron.New(),
	}
}

func (s *schedulerService) Start(ctx context.Context) error {
	expr := s.cfg.Scheduler.RefreshCron
	if expr == "" {
		s.log.Info("refresh cron is empty, scheduler disabled")
		return nil
	}
	_, err := s.cron.AddFunc(expr, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := s.RunRefreshNow(runCtx); err != nil {
			s.log.Error("scheduled refresh sweep failed", logger.ErrorField(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register refresh cron %q: %w", expr, err)
	}
	s.cron.Start()
	s.log.InfoContext(ctx, "scheduler started",
		logger.StringField("refresh_cron", expr),
		logger.IntField("max_concurrency", s.cfg.Scheduler.MaxConcurrency))
	return nil
}

func (s *schedulerService) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

func (s *schedulerService) RunRefreshNow(ctx context.Context) error {
	codes, err := s.priceCSVRepo.ListCodes()
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "starting refresh sweep", logger.IntField("codes", len(codes)))
	if err := s.stockData.RefreshAll(ctx, s.cfg.Scheduler.MaxConcurrency); err != nil {
		return err
	}
	for _, code := range codes {
		if err := s.syncCode(ctx, code); err != nil {
			s.log.WarnContext(ctx, "failed to mirror code into database",
				logger.StringField("code", code),
				logger.ErrorField(err))
		}
	}
	return nil
}

// syncCode mirrors one code's refreshed bars and baseline 5/20 signals into
// the database tables.
func (s *schedulerService) syncCode(ctx context.Context, code string) error {
	bars, _, err := s.stockData.GetStockData(ctx, dto.GetStockDataParam{Symbol: code})
	if err != nil {
		return err
	}
	if err := s.stockRepo.Upsert(ctx, &model.Stock{Code: code, Name: code}); err != nil {
		return err
	}
	stock, err := s.stockRepo.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if stock == nil {
		return fmt.Errorf("stock %s missing after upsert", code)
	}
	if err := s.stockRepo.SavePrices(ctx, stock.ID, bars); err != nil {
		return err
	}

	cfg := engine.DefaultConfig()
	closes := indicator.Closes(bars)
	maShort := indicator.SMA(closes, cfg.ShortWindow)
	maLong := indicator.SMA(closes, cfg.LongWindow)
	signals := signal.Detect(bars, maShort, maLong, cfg.ConfirmBars, cfg.MinCrossGap)
	return s.stockRepo.SaveSignals(ctx, stock.ID, cfg.ShortWindow, cfg.LongWindow, signals)
}
