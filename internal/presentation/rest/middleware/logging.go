package middleware

import (
	"time"

	otelinfra "change-server/internal/infrastructure/observability/otel"
	"github.com/labstack/echo/v4"
)

// LoggingMiddleware リクエストごとに完了ログを1行出力するミドルウェア
func LoggingMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			fields := map[string]interface{}{
				"method":      req.Method,
				"path":        req.URL.Path,
				"route":       c.Path(),
				"status_code": c.Response().Status,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": c.RealIP(),
			}
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				fields["request_id"] = id
			}
			if kioskID, ok := c.Get(ContextKeyKioskID).(string); ok {
				fields["kiosk_id"] = kioskID
			}

			switch {
			case err != nil:
				logger.Error(req.Context(), "HTTP request failed", err, fields)
			case c.Response().Status >= 500:
				logger.Warn(req.Context(), "HTTP request completed with server error", fields)
			default:
				logger.Info(req.Context(), "HTTP request completed", fields)
			}
			return err
		}
	}
}
