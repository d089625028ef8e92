package repository

import (
	"trendlab/config"
	"trendlab/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	PriceCSVRepo     PriceCSVRepository
	YahooFinanceRepo YahooFinanceRepository
	StockRepo        StockRepository
	BacktestRunRepo  BacktestRunRepository
	ArtifactRepo     ArtifactRepository
}

func NewRepository(cfg *config.Config, db *gorm.DB, log *logger.Logger) (*Repository, error) {
	priceCSVRepo, err := NewPriceCSVRepository(cfg.Data.Dir, log)
	if err != nil {
		return nil, err
	}
	artifactRepo, err := NewArtifactRepository(cfg.Backtest.ArtifactDir)
	if err != nil {
		return nil, err
	}

	return &Repository{
		PriceCSVRepo:     priceCSVRepo,
		YahooFinanceRepo: NewYahooFinanceRepository(cfg, log),
		StockRepo:        NewStockRepository(db),
		BacktestRunRepo:  NewBacktestRunRepository(db),
		ArtifactRepo:     artifactRepo,
	}, nil
}
