package repository

import (
	"context"
	"errors"

	"trendlab/internal/engine"
	"trendlab/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockRepository interface {
	Upsert(ctx context.Context, stock *model.Stock) error
	FindByCode(ctx context.Context, code string) (*model.Stock, error)
	SavePrices(ctx context.Context, stockID uint, bars []engine.Bar) error
	SaveSignals(ctx context.Context, stockID uint, shortWindow, longWindow int, signals []engine.SignalEvent) error
}

type stockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepository{db: db}
}

func (r *stockRepository) Upsert(ctx context.Context, stock *model.Stock) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "market", "is_active", "updated_at"}),
		}).
		Create(stock).Error
}

func (r *stockRepository) FindByCode(ctx context.Context, code string) (*model.Stock, error) {
	var stock model.Stock
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepository) SavePrices(ctx context.Context, stockID uint, bars []engine.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	prices := make([]model.StockPrice, 0, len(bars))
	for _, b := range bars {
		prices = append(prices, model.StockPrice{
			StockID: stockID,
			Date:    b.Date,
			Open:    b.Open,
			High:    b.High,
			Low:     b.Low,
			Close:   b.Close,
			Volume:  int64(b.Volume),
		})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stock_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
		}).
		CreateInBatches(prices, 500).Error
}

func (r *stockRepository) SaveSignals(ctx context.Context, stockID uint, shortWindow, longWindow int, signals []engine.SignalEvent) error {
	tx := r.db.WithContext(ctx)
	// Signals are deterministic from prices and windows, so the stored set is
	// replaced wholesale per parameterization.
	err := tx.Where("stock_id = ? AND short_window = ? AND long_window = ?", stockID, shortWindow, longWindow).
		Delete(&model.StrategySignal{}).Error
	if err != nil {
		return err
	}
	if len(signals) == 0 {
		return nil
	}
	rows := make([]model.StrategySignal, 0, len(signals))
	for _, s := range signals {
		rows = append(rows, model.StrategySignal{
			StockID:     stockID,
			Date:        s.Date,
			SignalType:  string(s.Type),
			Price:       s.Price,
			MAShort:     s.MAShort,
			MALong:      s.MALong,
			ShortWindow: shortWindow,
			LongWindow:  longWindow,
		})
	}
	return tx.CreateInBatches(rows, 500).Error
}
