// Package simulator executes a daily target exposure series against price
// bars with next-bar-open timing. An exposure decided using information
// through the close of day t is applied no earlier than the open of day t+1;
// same-day execution never happens.
package simulator

import (
	"fmt"
	"math"

	"trendlab/internal/engine"
	"trendlab/internal/engine/indicator"
)

// Result holds everything one simulation produces: daily mark-to-market
// records, a 100%-exposure buy-and-hold benchmark, fills for every exposure
// change, and trades closed when exposure returned to exactly zero.
type Result struct {
	Daily     []engine.DailyRecord
	Benchmark []engine.DailyRecord
	Fills     []engine.Fill
	Trades    []engine.ClosedTrade
}

// position is the per-instrument accumulator. Entry state is reset on every
// zero-to-nonzero transition and owned exclusively by one simulation run.
type position struct {
	shares        float64
	entryDate     engine.Bar
	entryPrice    float64
	highSince     float64
	quantity      float64
	costBasis     float64
	proceeds      float64
	lastExitPrice float64
}

// Run simulates target against bars under cfg. target[i] is the exposure
// decided at the close of bars[i]; it executes at the next available open.
// Zero- or one-length inputs yield an empty or singleton record set without
// error.
func Run(bars []engine.Bar, target []float64, cfg engine.EffectiveConfig) (*Result, error) {
	if len(target) != len(bars) {
		return nil, fmt.Errorf("exposure series length %d does not match bar count %d", len(target), len(bars))
	}
	res := &Result{}
	if len(bars) == 0 {
		return res, nil
	}

	var atr []float64
	if cfg.UseChandelierStop || cfg.UseVolStop {
		atr = indicator.ATR(bars, cfg.VolWindow)
	}

	cash := cfg.InitialCapital
	pos := position{}
	inPosition := false
	firstClose := bars[0].Close

	for i, bar := range bars {
		// Exposure decided at close(i-1) executes at open(i).
		desired := 0.0
		if i > 0 && !math.IsNaN(target[i-1]) {
			desired = math.Max(0, target[i-1])
		}

		if inPosition && i > 0 && atr != nil {
			if stopped(bars, atr, i, &pos, cfg) {
				desired = 0.0
			}
		}

		if bar.Open > 0 {
			equityAtOpen := cash + pos.shares*bar.Open
			delta := equityAtOpen*desired - pos.shares*bar.Open
			// ignore float dust so an unchanged target does not churn
			if math.Abs(delta) <= equityAtOpen*1e-9 {
				delta = 0
			}

			if delta > 0 && cash > 0 {
				effPrice := bar.Open * (1 + cfg.SlippageRate)
				unitCost := effPrice * (1 + cfg.FeeRate)
				buyShares := math.Min(delta/unitCost, cash/unitCost)
				if buyShares > 0 {
					cash -= buyShares * unitCost
					res.Fills = append(res.Fills, engine.Fill{
						Date:     bar.Date,
						Side:     engine.SideBuy,
						Quantity: buyShares,
						Price:    effPrice,
						Fee:      buyShares * effPrice * cfg.FeeRate,
						Slippage: buyShares * bar.Open * cfg.SlippageRate,
						Notional: buyShares * effPrice,
					})
					if !inPosition {
						inPosition = true
						pos = position{entryDate: bar, entryPrice: effPrice, highSince: bar.High}
					}
					pos.shares += buyShares
					pos.quantity += buyShares
					pos.costBasis += buyShares * unitCost
				}
			} else if delta < 0 && pos.shares > 0 {
				effPrice := bar.Open * (1 - cfg.SlippageRate)
				unitRevenue := effPrice * (1 - cfg.FeeRate)
				sellShares := math.Min(-delta/bar.Open, pos.shares)
				if sellShares > 0 {
					cash += sellShares * unitRevenue
					res.Fills = append(res.Fills, engine.Fill{
						Date:     bar.Date,
						Side:     engine.SideSell,
						Quantity: sellShares,
						Price:    effPrice,
						Fee:      sellShares * effPrice * cfg.FeeRate,
						Slippage: sellShares * bar.Open * cfg.SlippageRate,
						Notional: sellShares * effPrice,
					})
					pos.shares -= sellShares
					pos.proceeds += sellShares * unitRevenue
					pos.lastExitPrice = effPrice
					if pos.shares <= 0 {
						res.Trades = append(res.Trades, engine.ClosedTrade{
							EntryDate:  pos.entryDate.Date,
							ExitDate:   bar.Date,
							EntryPrice: pos.entryPrice,
							ExitPrice:  pos.lastExitPrice,
							Quantity:   pos.quantity,
							PnL:        pos.proceeds - pos.costBasis,
						})
						pos = position{}
						inPosition = false
					}
				}
			}
		}

		equity := cash + pos.shares*bar.Close
		record := engine.DailyRecord{
			Date:   bar.Date,
			Equity: equity,
			Value:  equity / cfg.InitialCapital,
		}
		if equity > 0 {
			record.Exposure = pos.shares * bar.Close / equity
		}
		res.Daily = append(res.Daily, record)

		benchValue := 0.0
		if firstClose > 0 {
			benchValue = bar.Close / firstClose
		}
		res.Benchmark = append(res.Benchmark, engine.DailyRecord{
			Date:     bar.Date,
			Equity:   cfg.InitialCapital * benchValue,
			Value:    benchValue,
			Exposure: 1.0,
		})

		if inPosition {
			pos.highSince = math.Max(pos.highSince, bar.High)
		}
	}
	return res, nil
}

// stopped evaluates the exit overrides for bar i. Both stop levels use
// information only through bar i-1: the previous ATR, the previous close,
// and the running high since entry as of the previous bar.
func stopped(bars []engine.Bar, atr []float64, i int, pos *position, cfg engine.EffectiveConfig) bool {
	prevATR := atr[i-1]
	if math.IsNaN(prevATR) || prevATR <= 0 {
		return false
	}
	prevClose := bars[i-1].Close
	if cfg.UseChandelierStop {
		if prevClose < pos.highSince-cfg.ChandelierK*prevATR {
			return true
		}
	}
	if cfg.UseVolStop {
		if pos.entryPrice-prevClose > cfg.VolStopATRMult*prevATR {
			return true
		}
	}
	return false
}
