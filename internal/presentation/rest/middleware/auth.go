package middleware

import (
	"net/http"
	"strings"

	"change-server/internal/application/auth"
	"change-server/internal/infrastructure/config"
	otelinfra "change-server/internal/infrastructure/observability/otel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ContextKeyKioskID 認証済みキオスクIDをechoコンテキストに保存するキー
const ContextKeyKioskID = "kiosk_id"

// AuthMiddleware キオスク端末のJWT認証ミドルウェア
func AuthMiddleware(cfg *config.JWTConfig, logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			scheme, tokenString, found := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
			if !found || scheme != "Bearer" || tokenString == "" {
				logger.Warn(ctx, "Missing or malformed authorization header", nil)
				return unauthorized(c, "Missing or malformed authorization header")
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(cfg.Secret), nil
			}, jwt.WithIssuer(cfg.Issuer))
			if err != nil || !token.Valid {
				fields := map[string]interface{}{}
				if err != nil {
					fields["error"] = err.Error()
				}
				logger.Warn(ctx, "Invalid token", fields)
				return unauthorized(c, "Invalid or expired token")
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				logger.Warn(ctx, "Invalid token claims", nil)
				return unauthorized(c, "Invalid token claims")
			}

			kioskID, ok := claims[auth.ClaimKioskID].(string)
			if !ok || kioskID == "" {
				logger.Warn(ctx, "Missing kiosk_id in token claims", nil)
				return unauthorized(c, "Missing kiosk_id in token")
			}

			c.Set(ContextKeyKioskID, kioskID)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:   "unauthorized",
		Message: message,
	})
}
