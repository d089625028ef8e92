package http

import (
	"net/http"
	"time"

	"trendlab/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupStock(base *echo.Group) {
	base.GET("/codes", h.listCodes)
	base.GET("/stock-data", h.getStockData)
	base.GET("/signals", h.getSignals)
}

func (h *HttpAPIHandler) listCodes(c echo.Context) error {
	ctx := c.Request().Context()

	codes, err := h.service.StockDataService.ListCodes(ctx)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"codes": codes})
}

func (h *HttpAPIHandler) getStockData(c echo.Context) error {
	ctx := c.Request().Context()

	query := new(dto.StockQuery)
	if err := c.Bind(query); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid query parameters"})
	}
	query.Defaults()
	if err := h.validator.Struct(query); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	resp, meta, err := h.service.StrategyService.GetStockData(ctx, *query)
	if err != nil {
		setDataHeaders(c, meta)
		return errorResponse(c, err)
	}
	setDataHeaders(c, meta)
	return c.JSON(http.StatusOK, resp)
}

func (h *HttpAPIHandler) getSignals(c echo.Context) error {
	ctx := c.Request().Context()

	query := new(dto.SignalsQuery)
	if err := c.Bind(query); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid query parameters"})
	}
	query.Defaults()
	if err := h.validator.Struct(query); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	resp, meta, err := h.service.StrategyService.GetSignals(ctx, *query)
	if err != nil {
		setDataHeaders(c, meta)
		return errorResponse(c, err)
	}
	setDataHeaders(c, meta)
	return c.JSON(http.StatusOK, resp)
}

// setDataHeaders exposes store freshness on every price-backed response so
// clients can detect stale or partial data without parsing the body.
func setDataHeaders(c echo.Context, meta *dto.DataMeta) {
	if meta == nil {
		return
	}
	header := c.Response().Header()
	if meta.DataStatus != "" {
		header.Set("X-Data-Status", meta.DataStatus)
	}
	if meta.DataMinDate != nil && meta.DataMaxDate != nil {
		header.Set("X-Data-Range", meta.DataMinDate.Format("2006-01-02")+".."+meta.DataMaxDate.Format("2006-01-02"))
	}
	if meta.LastModified != nil {
		header.Set("X-Data-Last-Updated", meta.LastModified.UTC().Format(time.RFC3339))
	}
	if meta.Refresh.Attempted {
		header.Set("X-Data-Refresh", meta.Refresh.Status)
	}
	if meta.Refresh.Reason != "" {
		header.Set("X-Data-Refresh-Reason", meta.Refresh.Reason)
	}
}
