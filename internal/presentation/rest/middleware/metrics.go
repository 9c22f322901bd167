package middleware

import (
	"time"

	otelinfra "change-server/internal/infrastructure/observability/otel"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware リクエスト数・応答時間・エラー数を記録するミドルウェア
// エラーはレスポンスのステータスコードで判定する
func MetricsMiddleware(metrics *otelinfra.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()
			method := c.Request().Method

			metrics.RecordRequest(ctx, method, c.Path())

			err := next(c)

			metrics.RecordResponseTime(ctx, method, c.Path(), time.Since(start).Seconds())

			status := c.Response().Status
			if err != nil && status < 400 {
				status = 500
			}
			switch {
			case status >= 500:
				metrics.RecordError(ctx, "server_error")
			case status >= 400:
				metrics.RecordError(ctx, "client_error")
			}
			return err
		}
	}
}
