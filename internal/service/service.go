package service

import (
	"trendlab/config"
	"trendlab/internal/repository"
	"trendlab/pkg/cache"
	"trendlab/pkg/logger"
)

type Service struct {
	StockDataService StockDataService
	StrategyService  StrategyService
	BacktestService  BacktestService
	SchedulerService SchedulerService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
) *Service {
	stockDataService := NewStockDataService(cfg, log, repo.PriceCSVRepo, repo.YahooFinanceRepo, inmemoryCache)
	strategyService := NewStrategyService(cfg, log, stockDataService)
	backtestService := NewBacktestService(cfg, log, stockDataService, repo.BacktestRunRepo, repo.ArtifactRepo)
	schedulerService := NewSchedulerService(cfg, log, stockDataService, repo.PriceCSVRepo, repo.StockRepo)

	return &Service{
		StockDataService: stockDataService,
		StrategyService:  strategyService,
		BacktestService:  backtestService,
		SchedulerService: schedulerService,
	}
}
