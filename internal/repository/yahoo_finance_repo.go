package repository

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"trendlab/config"
	"trendlab/internal/dto"
	"trendlab/internal/engine"
	"trendlab/pkg/httpclient"
	"trendlab/pkg/logger"

	"golang.org/x/time/rate"
)

type YahooFinanceRepository interface {
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]engine.Bar, error)
}

type yahooFinanceRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            *config.Config
	logger         *logger.Logger
	requestLimiter *rate.Limiter
	mu             sync.Mutex
}

func NewYahooFinanceRepository(cfg *config.Config, log *logger.Logger) YahooFinanceRepository {
	perMinute := cfg.Yahoo.MaxRequestPerMinute
	if perMinute < 1 {
		perMinute = 1
	}
	requestLimiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)

	return &yahooFinanceRepository{
		httpClient:     httpclient.New(cfg.Yahoo.BaseURL, cfg.Yahoo.Timeout),
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
	}
}

func (r *yahooFinanceRepository) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]engine.Bar, error) {
	r.mu.Lock()
	if !r.requestLimiter.Allow() {
		r.logger.WarnContext(ctx, "chart API request limit reached, waiting",
			logger.IntField("max_request_per_minute", r.cfg.Yahoo.MaxRequestPerMinute),
			logger.StringField("symbol", symbol),
		)
	}
	if err := r.requestLimiter.Wait(ctx); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	endpoint := "/" + symbol
	queryParams := map[string]string{
		"period1":        fmt.Sprintf("%d", start.Unix()),
		"period2":        fmt.Sprintf("%d", end.AddDate(0, 0, 1).Unix()),
		"interval":       "1d",
		"includePrePost": "false",
		"events":         "div,split",
	}
	headers := map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://finance.yahoo.com/",
	}

	var chartResp dto.YahooChartResponse
	resp, err := r.httpClient.Get(ctx, endpoint, queryParams, headers, &chartResp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart data: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.ErrorContext(ctx, "chart API returned non-OK status",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("symbol", symbol),
			logger.StringField("body", string(resp.Body)))
		return nil, fmt.Errorf("chart api returned status %d for %s", resp.StatusCode, symbol)
	}
	if chartResp.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error for %s: %v", symbol, chartResp.Chart.Error)
	}
	if len(chartResp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no data returned for symbol %s", symbol)
	}

	result := chartResp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote data available for symbol %s", symbol)
	}
	quote := result.Indicators.Quote[0]

	var bars []engine.Bar
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			continue
		}
		// Zero prices mark missing rows in the chart payload.
		if quote.Open[i] == 0 || quote.High[i] == 0 || quote.Low[i] == 0 || quote.Close[i] == 0 {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		volume := 0.0
		if i < len(quote.Volume) {
			volume = float64(quote.Volume[i])
		}
		bars = append(bars, engine.Bar{
			Date:   time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
			Open:   quote.Open[i],
			High:   quote.High[i],
			Low:    quote.Low[i],
			Close:  quote.Close[i],
			Volume: volume,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no valid OHLCV data found for symbol %s", symbol)
	}
	return bars, nil
}
