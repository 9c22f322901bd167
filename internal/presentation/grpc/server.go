package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	dispenseapp "change-server/internal/application/change_dispense"
	paymentapp "change-server/internal/application/payment"
	"change-server/internal/infrastructure/config"
	otelinfra "change-server/internal/infrastructure/observability/otel"
	"change-server/internal/presentation/grpc/handler"
	"change-server/internal/presentation/grpc/interceptor"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// DatabaseChecker DB疎通確認
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server gRPCサーバー
type Server struct {
	server          *grpc.Server
	health          *health.Server
	listener        net.Listener
	port            int
	logger          *otelinfra.Logger
	db              DatabaseChecker
	dispenseService *dispenseapp.DispenseApplicationService
}

// NewServer 新しいgRPCサーバーを作成
func NewServer(
	cfg *config.Config,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	db DatabaseChecker,
	paymentService *paymentapp.PaymentApplicationService,
	dispenseService *dispenseapp.DispenseApplicationService,
) (*Server, error) {
	port := cfg.Server.GRPCPort
	address := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	return NewServerWithListener(cfg, logger, metrics, db, paymentService, dispenseService, listener, port)
}

// NewServerWithListener リスナーを指定してgRPCサーバーを作成（テスト用）
func NewServerWithListener(
	cfg *config.Config,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	db DatabaseChecker,
	paymentService *paymentapp.PaymentApplicationService,
	dispenseService *dispenseapp.DispenseApplicationService,
	listener net.Listener,
	port int,
) (*Server, error) {
	// キオスク向けはJWT、管理用はAPIキーで認証する
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			interceptor.ObservabilityInterceptor(logger, metrics),
			interceptor.ForService(handler.ChangeServiceName, interceptor.AuthInterceptor(&cfg.JWT, logger)),
			interceptor.ForService(handler.AdminServiceName, interceptor.APIKeyInterceptor(&cfg.AdminAPI, logger)),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     15 * time.Second,
			MaxConnectionAge:      30 * time.Second,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  5 * time.Second,
			Timeout:               1 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	grpcServer := grpc.NewServer(opts...)

	handler.RegisterChangeServiceServer(grpcServer, handler.NewChangeHandler(paymentService, dispenseService))
	handler.RegisterAdminServiceServer(grpcServer, handler.NewAdminHandler(dispenseService))

	// 最初の確認が終わるまではNOT_SERVING
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(handler.ChangeServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// リフレクションを有効化（開発環境用）
	if cfg.Environment == "development" {
		reflection.Register(grpcServer)
	}

	return &Server{
		server:          grpcServer,
		health:          healthServer,
		listener:        listener,
		port:            port,
		logger:          logger,
		db:              db,
		dispenseService: dispenseService,
	}, nil
}

// CheckHealth DBとハードウェアの状態をヘルスサービスに反映
// サーバー全体はDBの状態、ChangeServiceはDBとハードウェアの両方で決まる
func (s *Server) CheckHealth(ctx context.Context) {
	dbErr := s.db.HealthCheck(ctx)
	live := s.dispenseService.HardwareStatus(ctx).Live

	overall := healthpb.HealthCheckResponse_SERVING
	if dbErr != nil {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
		s.logger.Warn(ctx, "Database health check failed", map[string]interface{}{
			"error": dbErr.Error(),
		})
	}
	change := overall
	if !live {
		change = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.health.SetServingStatus("", overall)
	s.health.SetServingStatus(handler.ChangeServiceName, change)
}

// MonitorHealth ctxが終わるまで一定間隔でヘルス状態を更新する
func (s *Server) MonitorHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		s.CheckHealth(checkCtx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Start サーバーを起動
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "gRPC server starting", map[string]interface{}{
		"port": s.port,
	})
	if err := s.server.Serve(s.listener); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop サーバーを停止
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info(ctx, "Stopping gRPC server", nil)
	s.health.Shutdown()

	// グレースフルシャットダウン
	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	// タイムアウトを設定
	select {
	case <-stopped:
		s.logger.Info(ctx, "gRPC server stopped", nil)
		return nil
	case <-ctx.Done():
		// タイムアウトした場合は強制停止
		s.logger.Warn(ctx, "gRPC server shutdown timeout, forcing stop", nil)
		s.server.Stop()
		return ctx.Err()
	}
}

// Port サーバーのポート番号を返す
func (s *Server) Port() int {
	return s.port
}
