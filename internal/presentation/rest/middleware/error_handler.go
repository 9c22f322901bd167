package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"change-server/internal/domain/acceptor"
	"change-server/internal/domain/change"
	"change-server/internal/domain/coin"
	"change-server/internal/domain/dispense"
	"change-server/internal/domain/hopper"
	otelinfra "change-server/internal/infrastructure/observability/otel"
)

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorMapping ドメインエラーとHTTPステータスの対応
type errorMapping struct {
	target error
	status int
	code   string
}

// 上から順に判定する
var errorMappings = []errorMapping{
	{change.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{change.ErrInvalidPolicy, http.StatusBadRequest, "invalid_policy"},
	{coin.ErrInvalidDenomination, http.StatusBadRequest, "invalid_denomination"},
	{dispense.ErrReasonRequired, http.StatusBadRequest, "reason_required"},
	{dispense.ErrInvalidRecord, http.StatusBadRequest, "invalid_request"},
	{dispense.ErrRecordNotFound, http.StatusNotFound, "record_not_found"},
	{change.ErrInsufficientPayment, http.StatusUnprocessableEntity, "insufficient_payment"},
	{change.ErrChangeLimitExceeded, http.StatusUnprocessableEntity, "change_limit_exceeded"},
	{change.ErrInsufficientReserve, http.StatusUnprocessableEntity, "insufficient_reserve"},
	{change.ErrUnrepresentable, http.StatusUnprocessableEntity, "unrepresentable"},
	{coin.ErrNegativeCount, http.StatusUnprocessableEntity, "negative_count"},
	{coin.ErrInsufficientCoins, http.StatusUnprocessableEntity, "insufficient_coins"},
	{acceptor.ErrWindowOpen, http.StatusConflict, "payment_window_open"},
	{acceptor.ErrNoWindow, http.StatusConflict, "no_payment_window"},
	{coin.ErrInventoryUnavailable, http.StatusServiceUnavailable, "inventory_unavailable"},
	{hopper.ErrHardwareUnavailable, http.StatusServiceUnavailable, "hardware_unavailable"},
}

// ErrorHandlerMiddleware エラーハンドリングミドルウェア
func ErrorHandlerMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			return handleError(c, err, logger)
		}
	}
}

// handleError エラーを処理して適切なHTTPレスポンスを返す
func handleError(c echo.Context, err error, logger *otelinfra.Logger) error {
	ctx := c.Request().Context()

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		fields := map[string]interface{}{
			"code":  m.code,
			"error": err.Error(),
		}
		if m.status >= http.StatusInternalServerError {
			logger.Error(ctx, "Dependency unavailable", err, fields)
		} else {
			logger.Warn(ctx, "Request rejected", fields)
		}
		return c.JSON(m.status, ErrorResponse{
			Error:   m.code,
			Message: err.Error(),
		})
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		logger.Warn(ctx, "HTTP error", map[string]interface{}{
			"status_code": httpErr.Code,
			"message":     httpErr.Message,
		})
		message, ok := httpErr.Message.(string)
		if !ok {
			message = http.StatusText(httpErr.Code)
		}
		return c.JSON(httpErr.Code, ErrorResponse{
			Error:   http.StatusText(httpErr.Code),
			Message: message,
		})
	}

	// ErrNoValidSuggestions も設定不備としてここに来る
	logger.Error(ctx, "Internal server error", err, map[string]interface{}{
		"path": c.Request().URL.Path,
	})
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_server_error",
		Message: "An unexpected error occurred",
	})
}
