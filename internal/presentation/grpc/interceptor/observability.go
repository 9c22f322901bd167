package interceptor

import (
	"context"
	"time"

	otelinfra "change-server/internal/infrastructure/observability/otel"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// metadataCarrier gRPCメタデータをTextMapCarrierとして扱う
type metadataCarrier metadata.MD

func (c metadataCarrier) Get(key string) string {
	if v := metadata.MD(c).Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c metadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

var _ propagation.TextMapCarrier = metadataCarrier{}

// ObservabilityInterceptor トレース・ログ・メトリクスを記録するインターセプター
func ObservabilityInterceptor(logger *otelinfra.Logger, metrics *otelinfra.Metrics) grpc.UnaryServerInterceptor {
	tracer := otel.Tracer("change-server/grpc")

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			ctx = otel.GetTextMapPropagator().Extract(ctx, metadataCarrier(md))
		}

		ctx, span := tracer.Start(ctx, info.FullMethod, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		span.SetAttributes(attribute.String("rpc.method", info.FullMethod))

		start := time.Now()
		metrics.RecordRequest(ctx, "grpc", info.FullMethod)

		resp, err := handler(ctx, req)

		metrics.RecordResponseTime(ctx, "grpc", info.FullMethod, time.Since(start).Seconds())
		code := status.Code(err)
		span.SetAttributes(attribute.String("rpc.grpc.status_code", code.String()))

		fields := map[string]interface{}{
			"method":      info.FullMethod,
			"code":        code.String(),
			"duration_ms": time.Since(start).Milliseconds(),
		}

		switch code {
		case codes.OK:
			logger.Info(ctx, "gRPC request completed", fields)
		case codes.Internal, codes.Unknown, codes.Unavailable, codes.DataLoss:
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			metrics.RecordError(ctx, "server_error")
			logger.Error(ctx, "gRPC request failed", err, fields)
		default:
			metrics.RecordError(ctx, "client_error")
			logger.Warn(ctx, "gRPC request rejected", fields)
		}
		return resp, err
	}
}
