package dto

import (
	"time"

	"trendlab/internal/engine"
	"trendlab/internal/engine/metrics"
)

// GetStockDataParam selects a symbol and an optional date range from the
// price store.
type GetStockDataParam struct {
	Symbol       string
	StartDate    *time.Time
	EndDate      *time.Time
	ForceRefresh bool
}

// RefreshMeta describes what the auto-refresh step did for one request.
type RefreshMeta struct {
	Attempted   bool   `json:"attempted"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
	FetchedRows int    `json:"fetched_rows"`
}

// DataMeta accompanies price data responses so callers can tell how fresh
// the local store is relative to what they asked for.
type DataMeta struct {
	Code           string      `json:"code"`
	File           string      `json:"file"`
	Source         string      `json:"source"`
	LastModified   *time.Time  `json:"last_modified"`
	DataMinDate    *time.Time  `json:"data_min_date"`
	DataMaxDate    *time.Time  `json:"data_max_date"`
	RequestedStart *time.Time  `json:"requested_start"`
	RequestedEnd   *time.Time  `json:"requested_end"`
	Refresh        RefreshMeta `json:"refresh"`
	CoverageStart  bool        `json:"coverage_start_ok"`
	CoverageEnd    bool        `json:"coverage_end_ok"`
	DataStatus     string      `json:"data_status"`
	ReturnedCount  int         `json:"returned_count"`
}

// CodeItem is one entry of the code listing endpoint.
type CodeItem struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	File  string `json:"file"`
}

// StockRow is one daily bar enriched with the requested moving averages.
// Averages are nil while the window is still warming up.
type StockRow struct {
	Date    time.Time `json:"date"`
	Open    float64   `json:"open"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	Close   float64   `json:"close"`
	Volume  float64   `json:"volume"`
	MAShort *float64  `json:"ma_short"`
	MALong  *float64  `json:"ma_long"`
}

// PerformanceBlock compares the strategy against buy-and-hold over the
// returned range.
type PerformanceBlock struct {
	Strategy  metrics.Summary `json:"strategy"`
	Benchmark metrics.Summary `json:"benchmark"`
}

// StockDataResponse is the stock-data endpoint payload.
type StockDataResponse struct {
	Code        string               `json:"code"`
	Rows        []StockRow           `json:"rows"`
	Signals     []engine.SignalEvent `json:"signals"`
	Performance *PerformanceBlock    `json:"performance,omitempty"`
	Meta        *DataMeta            `json:"meta,omitempty"`
}

// SignalsMeta reports how many signals the engine generated before the
// response filter was applied, plus the effective parameters.
type SignalsMeta struct {
	GeneratedCount int                    `json:"generated_count"`
	ReturnedCount  int                    `json:"returned_count"`
	Params         map[string]interface{} `json:"params"`
}

// SignalsResponse is the signals endpoint payload.
type SignalsResponse struct {
	Signals []engine.SignalEvent `json:"signals"`
	Meta    SignalsMeta          `json:"meta"`
}

// YahooChartResponse mirrors the chart API payload.
type YahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}
