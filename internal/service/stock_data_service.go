package service

import (
	"context"
	"time"

	"trendlab/config"
	"trendlab/internal/dto"
	"trendlab/internal/engine"
	"trendlab/internal/repository"
	"trendlab/pkg/cache"
	"trendlab/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Refresh decision reasons reported in the response meta.
const (
	RefreshReasonDisabled         = "disabled"
	RefreshReasonNoRequestedRange = "no_requested_range"
	RefreshReasonCoveredByLocal   = "covered_by_local"
	RefreshReasonNoLocalData      = "no_local_data"
	RefreshReasonStartBeforeMin   = "start_date_before_min_date"
	RefreshReasonEndAfterMax      = "end_date_after_max_date"
	RefreshReasonCooldown         = "cooldown"
	RefreshReasonForced           = "forced"
)

const (
	refreshStatusSuccess = "success"
	refreshStatusFailed  = "failed"
	refreshStatusSkipped = "skipped"

	refreshCacheKeyPrefix = "stock_refresh:"
)

// StockDataService serves daily bars from the local CSV store and keeps the
// store fresh by fetching the missing tail on demand.
type StockDataService interface {
	GetStockData(ctx context.Context, param dto.GetStockDataParam) ([]engine.Bar, *dto.DataMeta, error)
	ListCodes(ctx context.Context) ([]dto.CodeItem, error)
	RefreshAll(ctx context.Context, maxConcurrency int) error
}

type stockDataService struct {
	cfg           *config.Config
	logger        *logger.Logger
	priceCSVRepo  repository.PriceCSVRepository
	yahooRepo     repository.YahooFinanceRepository
	inmemoryCache cache.Cache
}

func NewStockDataService(
	cfg *config.Config,
	log *logger.Logger,
	priceCSVRepo repository.PriceCSVRepository,
	yahooRepo repository.YahooFinanceRepository,
	inmemoryCache cache.Cache,
) StockDataService {
	return &stockDataService{
		cfg:           cfg,
		logger:        log,
		priceCSVRepo:  priceCSVRepo,
		yahooRepo:     yahooRepo,
		inmemoryCache: inmemoryCache,
	}
}

func (s *stockDataService) GetStockData(ctx context.Context, param dto.GetStockDataParam) ([]engine.Bar, *dto.DataMeta, error) {
	bars, file, err := s.priceCSVRepo.Read(param.Symbol)
	if err != nil {
		return nil, nil, err
	}

	meta := &dto.DataMeta{
		Code:           param.Symbol,
		Source:         "local_csv",
		RequestedStart: param.StartDate,
		RequestedEnd:   param.EndDate,
	}
	s.fillRangeMeta(meta, bars, file)

	refresh, reason := s.shouldRefresh(param, bars)
	meta.Refresh.Reason = reason
	if refresh {
		fetched, err := s.refresh(ctx, param, bars, meta)
		if err != nil {
			s.logger.WarnContext(ctx, "price refresh failed, serving local data",
				logger.StringField("code", param.Symbol),
				logger.ErrorField(err))
		} else if fetched {
			bars, file, err = s.priceCSVRepo.Read(param.Symbol)
			if err != nil {
				return nil, nil, err
			}
			meta.Source = "local_csv+refresh"
			s.fillRangeMeta(meta, bars, file)
		}
	}

	if len(bars) == 0 {
		return nil, meta, &engine.InsufficientDataError{Segment: "full", HasAnyData: false}
	}

	filtered := filterRange(bars, param.StartDate, param.EndDate)
	meta.ReturnedCount = len(filtered)
	meta.CoverageStart = param.StartDate == nil || !bars[0].Date.After(*param.StartDate)
	meta.CoverageEnd = param.EndDate == nil || !bars[len(bars)-1].Date.Before(*param.EndDate)
	if meta.CoverageStart && meta.CoverageEnd {
		meta.DataStatus = "complete"
	} else {
		meta.DataStatus = "partial"
	}
	return filtered, meta, nil
}

func (s *stockDataService) fillRangeMeta(meta *dto.DataMeta, bars []engine.Bar, file *repository.PriceFile) {
	if file != nil {
		meta.File = file.Path
		mod := file.LastModified
		meta.LastModified = &mod
	}
	if len(bars) > 0 {
		minDate, maxDate := bars[0].Date, bars[len(bars)-1].Date
		meta.DataMinDate = &minDate
		meta.DataMaxDate = &maxDate
	}
}

// shouldRefresh decides whether a remote fetch is warranted and names the
// reason either way. Force always attempts; otherwise the store refreshes
// only when the requested range falls outside what the local file covers.
func (s *stockDataService) shouldRefresh(param dto.GetStockDataParam, bars []engine.Bar) (bool, string) {
	if param.ForceRefresh {
		return true, RefreshReasonForced
	}
	if !s.cfg.Data.AutoRefresh {
		return false, RefreshReasonDisabled
	}
	if len(bars) == 0 {
		return true, RefreshReasonNoLocalData
	}
	if param.StartDate == nil && param.EndDate == nil {
		return false, RefreshReasonNoRequestedRange
	}
	minDate, maxDate := bars[0].Date, bars[len(bars)-1].Date
	if param.StartDate != nil && param.StartDate.Before(minDate) {
		return true, RefreshReasonStartBeforeMin
	}
	if param.EndDate != nil && param.EndDate.After(maxDate) {
		return true, RefreshReasonEndAfterMax
	}
	return false, RefreshReasonCoveredByLocal
}

func (s *stockDataService) refresh(ctx context.Context, param dto.GetStockDataParam, bars []engine.Bar, meta *dto.DataMeta) (bool, error) {
	cacheKey := refreshCacheKeyPrefix + param.Symbol
	if !param.ForceRefresh {
		if _, onCooldown := s.inmemoryCache.Get(cacheKey); onCooldown {
			meta.Refresh.Reason = RefreshReasonCooldown
			meta.Refresh.Status = refreshStatusSkipped
			return false, nil
		}
	}
	meta.Refresh.Attempted = true

	now := time.Now().UTC()
	fetchStart := now.AddDate(-3, 0, 0)
	fetchEnd := now
	if len(bars) > 0 {
		minDate, maxDate := bars[0].Date, bars[len(bars)-1].Date
		if param.StartDate != nil && param.StartDate.Before(minDate) {
			fetchStart = *param.StartDate
		} else {
			fetchStart = maxDate.AddDate(0, 0, 1)
		}
	} else if param.StartDate != nil {
		fetchStart = *param.StartDate
	}
	if param.EndDate != nil && param.EndDate.After(fetchEnd) {
		fetchEnd = *param.EndDate
	}
	if !fetchStart.Before(fetchEnd) {
		meta.Refresh.Status = refreshStatusSkipped
		return false, nil
	}

	s.inmemoryCache.Set(cacheKey, now, s.cfg.Data.RefreshCooldown)

	fetched, err := s.yahooRepo.FetchDaily(ctx, param.Symbol, fetchStart, fetchEnd)
	if err != nil {
		meta.Refresh.Status = refreshStatusFailed
		return false, err
	}
	added, err := s.priceCSVRepo.Merge(param.Symbol, fetched)
	if err != nil {
		meta.Refresh.Status = refreshStatusFailed
		return false, err
	}
	meta.Refresh.Status = refreshStatusSuccess
	meta.Refresh.FetchedRows = added
	s.logger.InfoContext(ctx, "refreshed local price store",
		logger.StringField("code", param.Symbol),
		logger.IntField("fetched_rows", added))
	return true, nil
}

func (s *stockDataService) ListCodes(ctx context.Context) ([]dto.CodeItem, error) {
	codes, err := s.priceCSVRepo.ListCodes()
	if err != nil {
		return nil, err
	}
	items := make([]dto.CodeItem, 0, len(codes))
	for _, code := range codes {
		file, err := s.priceCSVRepo.Resolve(code)
		if err != nil || file == nil {
			continue
		}
		items = append(items, dto.CodeItem{Code: code, Label: code, File: file.Path})
	}
	return items, nil
}

// RefreshAll fetches the missing tail for every code in the store. Failures
// are logged per code and never stop the sweep.
func (s *stockDataService) RefreshAll(ctx context.Context, maxConcurrency int) error {
	codes, err := s.priceCSVRepo.ListCodes()
	if err != nil {
		return err
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	now := time.Now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for _, code := range codes {
		code := code
		g.Go(func() error {
			param := dto.GetStockDataParam{Symbol: code, EndDate: &now, ForceRefresh: true}
			if _, _, err := s.GetStockData(gctx, param); err != nil {
				s.logger.WarnContext(gctx, "scheduled refresh failed",
					logger.StringField("code", code),
					logger.ErrorField(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func filterRange(bars []engine.Bar, start, end *time.Time) []engine.Bar {
	if start == nil && end == nil {
		return bars
	}
	var out []engine.Bar
	for _, b := range bars {
		if start != nil && b.Date.Before(*start) {
			continue
		}
		if end != nil && b.Date.After(*end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
