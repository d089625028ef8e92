package model

import "time"

type Stock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"type:varchar(100)" json:"name"`
	Market    string    `gorm:"type:varchar(10)" json:"market"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Stock) TableName() string {
	return "stocks"
}

type StockPrice struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	StockID       uint      `gorm:"not null;uniqueIndex:idx_stock_prices_stock_date" json:"stock_id"`
	Date          time.Time `gorm:"type:date;not null;uniqueIndex:idx_stock_prices_stock_date" json:"date"`
	Open          float64   `gorm:"not null" json:"open"`
	High          float64   `gorm:"not null" json:"high"`
	Low           float64   `gorm:"not null" json:"low"`
	Close         float64   `gorm:"not null" json:"close"`
	Volume        int64     `gorm:"not null" json:"volume"`
	AdjustedClose *float64  `json:"adjusted_close"`
	Stock         Stock     `gorm:"foreignKey:StockID;references:ID" json:"-"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (StockPrice) TableName() string {
	return "stock_prices"
}

type StrategySignal struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StockID     uint      `gorm:"not null;index" json:"stock_id"`
	Date        time.Time `gorm:"type:date;not null" json:"date"`
	SignalType  string    `gorm:"type:varchar(10);not null" json:"signal_type"`
	Price       float64   `gorm:"not null" json:"price"`
	MAShort     float64   `gorm:"not null" json:"ma_short"`
	MALong      float64   `gorm:"not null" json:"ma_long"`
	ShortWindow int       `gorm:"not null;default:5" json:"short_window"`
	LongWindow  int       `gorm:"not null;default:20" json:"long_window"`
	Stock       Stock     `gorm:"foreignKey:StockID;references:ID" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (StrategySignal) TableName() string {
	return "strategy_signals"
}
