package interceptor

import (
	"context"
	"strings"

	"change-server/internal/application/auth"
	"change-server/internal/infrastructure/config"
	otelinfra "change-server/internal/infrastructure/observability/otel"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type kioskIDKey struct{}

// KioskIDFromContext 認証済みのキオスクIDを取得
func KioskIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(kioskIDKey{}).(string)
	return id, ok
}

// AuthInterceptor キオスク端末のJWT認証インターセプター
func AuthInterceptor(cfg *config.JWTConfig, logger *otelinfra.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			logger.Warn(ctx, "Missing metadata", nil)
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			logger.Warn(ctx, "Missing authorization header", nil)
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		scheme, tokenString, found := strings.Cut(authHeaders[0], " ")
		if !found || scheme != "Bearer" || tokenString == "" {
			logger.Warn(ctx, "Invalid authorization header format", nil)
			return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.Secret), nil
		}, jwt.WithIssuer(cfg.Issuer))
		if err != nil || !token.Valid {
			fields := map[string]interface{}{"method": info.FullMethod}
			if err != nil {
				fields["error"] = err.Error()
			}
			logger.Warn(ctx, "Invalid token", fields)
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			logger.Warn(ctx, "Invalid token claims", nil)
			return nil, status.Error(codes.Unauthenticated, "invalid token claims")
		}

		kioskID, ok := claims[auth.ClaimKioskID].(string)
		if !ok || kioskID == "" {
			logger.Warn(ctx, "Missing kiosk_id in token claims", nil)
			return nil, status.Error(codes.Unauthenticated, "missing kiosk_id in token")
		}

		return handler(context.WithValue(ctx, kioskIDKey{}, kioskID), req)
	}
}
