package http

import (
	"context"
	"errors"
	"net/http"

	"trendlab/internal/engine"
	"trendlab/internal/service"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type HttpAPIHandler struct {
	echo      *echo.Echo
	validator *goValidator.Validate
	service   *service.Service
}

func NewHttpAPIHandler(ctx context.Context, echo *echo.Echo, validator *goValidator.Validate, service *service.Service) *HttpAPIHandler {
	return &HttpAPIHandler{
		echo:      echo,
		validator: validator,
		service:   service,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	base := h.echo.Group("/api")
	h.SetupStock(base)
	h.SetupBacktest(base)
}

// errorResponse maps engine errors onto HTTP statuses: configuration
// problems are the caller's fault, a window with no data is unprocessable,
// anything else is internal.
func errorResponse(c echo.Context, err error) error {
	var cfgErr *engine.ConfigError
	if errors.As(err, &cfgErr) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": cfgErr.Error(),
			"field": cfgErr.Field,
		})
	}
	var dataErr *engine.InsufficientDataError
	if errors.As(err, &dataErr) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": dataErr.Error()})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
