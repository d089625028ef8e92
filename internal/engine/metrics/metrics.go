// Package metrics summarizes simulated equity curves. Undefined statistics
// are reported as NaN, never silently zeroed, so downstream ranking can tell
// "no drawdown" apart from "not measurable".
package metrics

import (
	"encoding/json"
	"math"
	"time"

	"trendlab/internal/engine"
)

// Segment bounds a date range. A nil End means the segment extends to the
// last available record.
type Segment struct {
	Start time.Time
	End   *time.Time
}

// Contains reports whether date falls inside the segment.
func (s Segment) Contains(date time.Time) bool {
	if date.Before(s.Start) {
		return false
	}
	if s.End != nil && date.After(*s.End) {
		return false
	}
	return true
}

// Summary is the full statistics block for one equity curve over one segment.
type Summary struct {
	CAGR        float64 `json:"cagr"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Sharpe      float64 `json:"sharpe"`
	Calmar      float64 `json:"calmar"`
	Turnover    float64 `json:"turnover"`
	AvgExposure float64 `json:"avg_exposure"`
	WinRate     float64 `json:"win_rate"`
	PLRatio     float64 `json:"pl_ratio"`
	NumTrades   int     `json:"num_trades"`
	NumFills    int     `json:"num_fills"`
	Bars        int     `json:"bars"`
}

// summaryJSON is the wire form of Summary. Undefined statistics serialize as
// null because encoding/json rejects NaN.
type summaryJSON struct {
	CAGR        *float64 `json:"cagr"`
	MaxDrawdown *float64 `json:"max_drawdown"`
	Sharpe      *float64 `json:"sharpe"`
	Calmar      *float64 `json:"calmar"`
	Turnover    *float64 `json:"turnover"`
	AvgExposure *float64 `json:"avg_exposure"`
	WinRate     *float64 `json:"win_rate"`
	PLRatio     *float64 `json:"pl_ratio"`
	NumTrades   int      `json:"num_trades"`
	NumFills    int      `json:"num_fills"`
	Bars        int      `json:"bars"`
}

func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		CAGR:        floatPtr(s.CAGR),
		MaxDrawdown: floatPtr(s.MaxDrawdown),
		Sharpe:      floatPtr(s.Sharpe),
		Calmar:      floatPtr(s.Calmar),
		Turnover:    floatPtr(s.Turnover),
		AvgExposure: floatPtr(s.AvgExposure),
		WinRate:     floatPtr(s.WinRate),
		PLRatio:     floatPtr(s.PLRatio),
		NumTrades:   s.NumTrades,
		NumFills:    s.NumFills,
		Bars:        s.Bars,
	})
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	var w summaryJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.CAGR = floatVal(w.CAGR)
	s.MaxDrawdown = floatVal(w.MaxDrawdown)
	s.Sharpe = floatVal(w.Sharpe)
	s.Calmar = floatVal(w.Calmar)
	s.Turnover = floatVal(w.Turnover)
	s.AvgExposure = floatVal(w.AvgExposure)
	s.WinRate = floatVal(w.WinRate)
	s.PLRatio = floatVal(w.PLRatio)
	s.NumTrades = w.NumTrades
	s.NumFills = w.NumFills
	s.Bars = w.Bars
	return nil
}

func floatPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func floatVal(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// Slice restricts a simulation result to seg: daily records and fills by
// their date, closed trades by exit date. Sliced values are renormalized so
// the segment starts at 1.0, which makes slicing a full run equivalent to
// simulating the segment alone.
func Slice(daily []engine.DailyRecord, fills []engine.Fill, trades []engine.ClosedTrade, seg Segment) ([]engine.DailyRecord, []engine.Fill, []engine.ClosedTrade) {
	var outDaily []engine.DailyRecord
	for _, d := range daily {
		if seg.Contains(d.Date) {
			outDaily = append(outDaily, d)
		}
	}
	if len(outDaily) > 0 && outDaily[0].Value > 0 {
		base := outDaily[0].Value
		for i := range outDaily {
			outDaily[i].Value /= base
		}
	}
	var outFills []engine.Fill
	for _, f := range fills {
		if seg.Contains(f.Date) {
			outFills = append(outFills, f)
		}
	}
	var outTrades []engine.ClosedTrade
	for _, t := range trades {
		if seg.Contains(t.ExitDate) {
			outTrades = append(outTrades, t)
		}
	}
	return outDaily, outFills, outTrades
}

// Summarize computes the statistics block for one already-sliced curve.
// tradingDays is the annualization base, normally 252.
func Summarize(daily []engine.DailyRecord, fills []engine.Fill, trades []engine.ClosedTrade, tradingDays int) Summary {
	s := Summary{
		Bars:      len(daily),
		NumFills:  len(fills),
		NumTrades: len(trades),
	}
	values := make([]float64, len(daily))
	for i, d := range daily {
		values[i] = d.Value
	}
	s.CAGR = cagr(values, tradingDays)
	s.MaxDrawdown = maxDrawdown(values)
	s.Sharpe = sharpe(values, tradingDays)
	s.Calmar = calmar(s.CAGR, s.MaxDrawdown)
	s.Turnover = turnover(daily, fills)
	s.AvgExposure = avgExposure(daily)
	s.WinRate, s.PLRatio = tradeStats(trades)
	return s
}

// Returns converts a value curve into simple daily returns; the first entry
// is 0 so the series stays aligned with the curve.
func Returns(values []float64) []float64 {
	r := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			r[i] = values[i]/values[i-1] - 1
		}
	}
	return r
}

func cagr(values []float64, tradingDays int) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	first, last := values[0], values[len(values)-1]
	if first <= 0 || last <= 0 {
		return math.NaN()
	}
	years := float64(len(values)-1) / float64(tradingDays)
	if years <= 0 {
		return math.NaN()
	}
	return math.Pow(last/first, 1/years) - 1
}

func maxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	peak := values[0]
	worst := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := 1 - v/peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpe is annualized with a zero risk-free rate and sample standard
// deviation. Fewer than two observations, or a degenerate flat curve with
// zero dispersion, is NaN rather than a fake zero or infinity.
func sharpe(values []float64, tradingDays int) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	r := Returns(values)
	mean := 0.0
	for _, v := range r {
		mean += v
	}
	mean /= float64(len(r))
	variance := 0.0
	for _, v := range r {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(r) - 1)
	std := math.Sqrt(variance)
	if std <= 0 {
		return math.NaN()
	}
	return mean / std * math.Sqrt(float64(tradingDays))
}

func calmar(cagr, mdd float64) float64 {
	if math.IsNaN(cagr) || math.IsNaN(mdd) || mdd <= 0 {
		return math.NaN()
	}
	return cagr / mdd
}

// turnover is total traded notional over mean equity. No fills at all means
// genuinely zero turnover; fills against nonpositive mean equity is
// unmeasurable.
func turnover(daily []engine.DailyRecord, fills []engine.Fill) float64 {
	if len(fills) == 0 {
		return 0.0
	}
	if len(daily) == 0 {
		return math.NaN()
	}
	meanEquity := 0.0
	for _, d := range daily {
		meanEquity += d.Equity
	}
	meanEquity /= float64(len(daily))
	if meanEquity <= 0 {
		return math.NaN()
	}
	total := 0.0
	for _, f := range fills {
		total += math.Abs(f.Notional)
	}
	return total / meanEquity
}

func avgExposure(daily []engine.DailyRecord) float64 {
	if len(daily) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, d := range daily {
		sum += d.Exposure
	}
	return sum / float64(len(daily))
}

func tradeStats(trades []engine.ClosedTrade) (winRate, plRatio float64) {
	if len(trades) == 0 {
		return math.NaN(), math.NaN()
	}
	var wins, losses int
	var grossWin, grossLoss float64
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
			grossWin += t.PnL
		} else if t.PnL < 0 {
			losses++
			grossLoss += -t.PnL
		}
	}
	winRate = float64(wins) / float64(len(trades))
	if wins == 0 || losses == 0 {
		plRatio = math.NaN()
	} else {
		plRatio = (grossWin / float64(wins)) / (grossLoss / float64(losses))
	}
	return winRate, plRatio
}
