package model

import (
	"time"

	"gorm.io/datatypes"
)

// BacktestRun is the persisted header of one evaluation run. The full
// artifact lives on disk under Path; the row keeps the locked configuration
// and the headline summary for querying.
type BacktestRun struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	RunID     string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"run_id"`
	Symbol    string         `gorm:"type:varchar(20);not null;index" json:"symbol"`
	Variant   string         `gorm:"type:varchar(50);not null" json:"variant"`
	Objective string         `gorm:"type:varchar(20)" json:"objective"`
	Config    datatypes.JSON `gorm:"type:jsonb;not null" json:"config"`
	Summary   datatypes.JSON `gorm:"type:jsonb" json:"summary"`
	Path      string         `gorm:"type:text" json:"path"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (BacktestRun) TableName() string {
	return "backtest_runs"
}
