package interceptor

import (
	"context"
	"crypto/subtle"
	"net"

	"change-server/internal/infrastructure/config"
	otelinfra "change-server/internal/infrastructure/observability/otel"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// APIKeyInterceptor 管理API用のAPIキー認証インターセプター
func APIKeyInterceptor(cfg *config.AdminAPIConfig, logger *otelinfra.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !cfg.Enabled {
			logger.Warn(ctx, "Admin API is disabled", nil)
			return nil, status.Error(codes.PermissionDenied, "admin API is disabled")
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			logger.Warn(ctx, "Missing metadata", nil)
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get("x-api-key")
		if len(apiKeys) == 0 || subtle.ConstantTimeCompare([]byte(apiKeys[0]), []byte(cfg.APIKey)) != 1 {
			logger.Warn(ctx, "Missing or invalid API key", map[string]interface{}{
				"method": info.FullMethod,
			})
			return nil, status.Error(codes.Unauthenticated, "missing or invalid API key")
		}

		if clientIP := peerIP(ctx); !cfg.AllowsIP(clientIP) {
			logger.Warn(ctx, "IP address not allowed", map[string]interface{}{
				"ip": clientIP,
			})
			return nil, status.Error(codes.PermissionDenied, "IP address not allowed")
		}

		return handler(ctx, req)
	}
}

// peerIP 接続元のIPアドレスを取得
func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
