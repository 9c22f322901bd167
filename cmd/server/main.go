package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	authapp "change-server/internal/application/auth"
	acceptanceapp "change-server/internal/application/coin_acceptance"
	dispenseapp "change-server/internal/application/change_dispense"
	historyapp "change-server/internal/application/history"
	paymentapp "change-server/internal/application/payment"
	settingsapp "change-server/internal/application/settings"
	"change-server/internal/domain/acceptor"
	"change-server/internal/domain/hopper"
	"change-server/internal/domain/service"
	"change-server/internal/infrastructure/config"
	hwinfra "change-server/internal/infrastructure/hardware"
	"change-server/internal/infrastructure/hardware/lock"
	otelinfra "change-server/internal/infrastructure/observability/otel"
	"change-server/internal/infrastructure/persistence/mysql"
	grpcserver "change-server/internal/presentation/grpc"
	"change-server/internal/presentation/rest"

	"golang.org/x/sync/errgroup"
)

const healthCheckInterval = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("change-server: %v", err)
	}
}

func run() error {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// OpenTelemetryの初期化
	tracerShutdown, err := otelinfra.InitTracer(&cfg.OpenTelemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	meterShutdown, err := otelinfra.InitMeter(&cfg.OpenTelemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown meter: %v", err)
		}
	}()

	// ロガーとメトリクスの初期化
	tracer := otelinfra.Tracer("change-server")
	logger := otelinfra.NewLogger(tracer)
	metrics, err := otelinfra.NewMetrics("change-server")
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// データベース接続の初期化
	db, err := mysql.NewDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// リポジトリの初期化
	inventoryRepo := mysql.NewInventoryRepository(db)
	recordRepo := mysql.NewDispenseRecordRepository(db)
	settingsRepo := mysql.NewSettingsRepository(db)

	// ドメインサービスの初期化
	policy, err := cfg.Coin.Policy()
	if err != nil {
		return fmt.Errorf("invalid coin policy: %w", err)
	}
	changeService, err := service.NewChangeService(inventoryRepo, policy)
	if err != nil {
		return fmt.Errorf("failed to create change service: %w", err)
	}

	// 実機は hopperctl と同時に触らない
	if cfg.Hardware.Driver == config.DriverPigpio {
		hwLock, err := lock.Acquire(cfg.Hardware.LockFile)
		if err != nil {
			return fmt.Errorf("failed to lock hardware: %w", err)
		}
		defer hwLock.Release()
	}

	// ハードウェアの初期化
	hopperConfigs, err := cfg.HopperConfigs()
	if err != nil {
		return fmt.Errorf("invalid hopper config: %w", err)
	}
	hardware, err := hopper.NewConnectionManager(hwinfra.NewConnector(cfg, logger), hopperConfigs, cfg.Dispense.SettleDelay, logger)
	if err != nil {
		return fmt.Errorf("failed to create hopper connection manager: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hardware.Close(ctx); err != nil {
			log.Printf("Failed to close hardware: %v", err)
		}
	}()

	// アプリケーションサービスの初期化
	settingsService := settingsapp.NewSettingsApplicationService(settingsRepo, changeService, logger)
	if err := settingsService.Load(ctx); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	paymentService := paymentapp.NewPaymentApplicationService(changeService, logger, metrics)
	dispenseService := dispenseapp.NewDispenseApplicationService(
		changeService,
		inventoryRepo,
		recordRepo,
		hardware,
		logger,
		metrics,
		dispenseapp.Options{
			HopperTimeout:      cfg.Dispense.HopperTimeout,
			TransactionTimeout: cfg.Dispense.TransactionTimeout,
		},
	)
	var (
		coinAcceptor      *acceptor.Acceptor
		acceptanceService *acceptanceapp.AcceptanceApplicationService
	)
	if cfg.Acceptor.Enabled {
		settings, err := cfg.AcceptorSettings()
		if err != nil {
			return fmt.Errorf("invalid acceptor config: %w", err)
		}
		coinAcceptor, err = acceptor.New(settings, hwinfra.NewAcceptorConnector(cfg, logger), logger)
		if err != nil {
			return fmt.Errorf("failed to create coin acceptor: %w", err)
		}
		acceptanceService = acceptanceapp.NewAcceptanceApplicationService(coinAcceptor, dispenseService, logger, metrics)
	}
	historyService := historyapp.NewHistoryApplicationService(recordRepo, logger)
	authService := authapp.NewAuthApplicationService(&cfg.JWT, logger)

	// 起動時に接続できなくても払い出し時に再試行する
	if _, err := dispenseService.Reconnect(ctx); err != nil {
		logger.Warn(ctx, "Hardware not available at startup", map[string]interface{}{
			"driver": cfg.Hardware.Driver,
			"error":  err.Error(),
		})
	}

	// REST APIルーターの初期化
	router, err := rest.NewRouter(cfg, logger, metrics, db, rest.Services{
		Auth:       authService,
		Payment:    paymentService,
		Dispense:   dispenseService,
		History:    historyService,
		Settings:   settingsService,
		Acceptance: acceptanceService,
	})
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	// gRPCサーバーの初期化
	grpcSrv, err := grpcserver.NewServer(cfg, logger, metrics, db, paymentService, dispenseService)
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	address := fmt.Sprintf(":%d", cfg.Server.Port)
	g.Go(func() error {
		logger.Info(gctx, "REST API server starting", map[string]interface{}{"address": address})
		return router.Start(address)
	})
	g.Go(func() error {
		return grpcSrv.Start()
	})
	g.Go(func() error {
		grpcSrv.MonitorHealth(gctx, healthCheckInterval)
		return nil
	})
	if coinAcceptor != nil {
		g.Go(func() error {
			return coinAcceptor.Run(gctx, acceptanceService.HandleCoin)
		})
	}

	// シグナルまたはいずれかのサーバーの停止を待ってシャットダウン
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "Shutting down servers", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return errors.Join(
			router.Shutdown(shutdownCtx),
			grpcSrv.Stop(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info(context.Background(), "Servers stopped", nil)
	return nil
}
