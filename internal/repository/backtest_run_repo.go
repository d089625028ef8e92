package repository

import (
	"context"
	"errors"

	"trendlab/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GetBacktestRunsParam struct {
	Symbol  string
	Variant string
	Limit   int
}

type BacktestRunRepository interface {
	Save(ctx context.Context, run *model.BacktestRun) error
	FindByRunID(ctx context.Context, runID string) (*model.BacktestRun, error)
	Get(ctx context.Context, param GetBacktestRunsParam) ([]model.BacktestRun, error)
}

type backtestRunRepository struct {
	db *gorm.DB
}

func NewBacktestRunRepository(db *gorm.DB) BacktestRunRepository {
	return &backtestRunRepository{db: db}
}

func (r *backtestRunRepository) Save(ctx context.Context, run *model.BacktestRun) error {
	// Re-running the same request overwrites the previous row so the table
	// mirrors the artifact directory.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"symbol", "variant", "objective", "config", "summary", "path"}),
		}).
		Create(run).Error
}

func (r *backtestRunRepository) FindByRunID(ctx context.Context, runID string) (*model.BacktestRun, error) {
	var run model.BacktestRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *backtestRunRepository) Get(ctx context.Context, param GetBacktestRunsParam) ([]model.BacktestRun, error) {
	db := r.db.WithContext(ctx).Model(&model.BacktestRun{})
	if param.Symbol != "" {
		db = db.Where("symbol = ?", param.Symbol)
	}
	if param.Variant != "" {
		db = db.Where("variant = ?", param.Variant)
	}
	if param.Limit > 0 {
		db = db.Limit(param.Limit)
	}
	var runs []model.BacktestRun
	if err := db.Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
