package middleware

import (
	"crypto/subtle"
	"net/http"

	"change-server/internal/infrastructure/config"
	otelinfra "change-server/internal/infrastructure/observability/otel"

	"github.com/labstack/echo/v4"
)

// HeaderAPIKey 管理APIキーのヘッダー名
const HeaderAPIKey = "X-API-Key"

// APIKeyMiddleware 管理API用のAPIキー認証ミドルウェア
func APIKeyMiddleware(cfg *config.AdminAPIConfig, logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			if !cfg.Enabled {
				logger.Warn(ctx, "Admin API is disabled", nil)
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "forbidden",
					Message: "Admin API is disabled",
				})
			}

			apiKey := c.Request().Header.Get(HeaderAPIKey)
			if apiKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(cfg.APIKey)) != 1 {
				logger.Warn(ctx, "Missing or invalid API key", nil)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Missing or invalid API key",
				})
			}

			if clientIP := c.RealIP(); !cfg.AllowsIP(clientIP) {
				logger.Warn(ctx, "IP address not allowed", map[string]interface{}{
					"ip": clientIP,
				})
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "forbidden",
					Message: "IP address not allowed",
				})
			}

			return next(c)
		}
	}
}
