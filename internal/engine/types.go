package engine

import "time"

// SignalType identifies the direction of a crossover signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
)

// Side identifies the direction of a fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Bar is one daily OHLCV record. Bars are handed to the engine as an ordered
// slice with unique ascending dates and are never mutated.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// SignalEvent is a confirmed moving-average crossover. Once emitted it is
// final and never retroactively revised.
type SignalEvent struct {
	Date    time.Time  `json:"date"`
	Type    SignalType `json:"signal_type"`
	Price   float64    `json:"price"`
	MAShort float64    `json:"ma_short"`
	MALong  float64    `json:"ma_long"`
}

// Fill records one executed exposure change at the next available open.
type Fill struct {
	Date     time.Time `json:"date"`
	Side     Side      `json:"side"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Fee      float64   `json:"fee"`
	Slippage float64   `json:"slippage"`
	Notional float64   `json:"notional"`
}

// ClosedTrade is emitted when a position returns to exactly zero exposure
// after being nonzero. Rebalances between two nonzero exposures do not close
// a trade; quantity is the cumulative size bought over the episode and PnL is
// total proceeds minus total cost including fees and slippage.
type ClosedTrade struct {
	EntryDate  time.Time `json:"entry_date"`
	ExitDate   time.Time `json:"exit_date"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
}

// DailyRecord is one simulated day marked to market at the close. Value is
// equity normalized to 1.0 at the start of the simulated segment.
type DailyRecord struct {
	Date     time.Time `json:"date"`
	Equity   float64   `json:"equity"`
	Value    float64   `json:"value"`
	Exposure float64   `json:"exposure"`
}

// WindowPair is a short/long moving-average window pair with Short < Long.
type WindowPair struct {
	Short int `json:"short"`
	Long  int `json:"long"`
}
