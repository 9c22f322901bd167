package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	dispenseapp "change-server/internal/application/change_dispense"
	"change-server/internal/domain/coin"
	"change-server/internal/domain/service"
	"change-server/internal/infrastructure/config"
	"change-server/internal/infrastructure/hardware/lock"
	otelinfra "change-server/internal/infrastructure/observability/otel"
	"change-server/internal/infrastructure/persistence/mysql"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	logLevel string
	force    bool
	noLedger bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hopperctl",
		Short: "Coin hopper diagnostics",
		Long: `hopperctl talks to the coin hoppers directly for diagnostics.

Coins it dispenses are written to the inventory ledger as adjustments, so the
database settings (DB_*) and coin settings (COIN_*) must match the server.
Pass --no-ledger to skip that on a bench rig without a database.

With the pigpio driver hopperctl takes the same hardware lock as the server
(HARDWARE_LOCK_FILE) and refuses to run while the server holds it, unless
--force is given.

Hardware settings are read from the same environment variables as the server
(HARDWARE_DRIVER, PIGPIO_ADDR, HOPPERS, SENSOR_*, HOPPER_TIMEOUT).`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&force, "force", false, "use the hardware even if change-server holds the lock")
	cmd.PersistentFlags().BoolVar(&noLedger, "no-ledger", false, "do not record dispensed coins in the inventory ledger")

	cmd.AddCommand(probeCmd())
	cmd.AddCommand(dispenseCmd())
	cmd.AddCommand(watchCmd())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadHardware ハードウェア設定とロガーを用意する
func loadHardware(cmd *cobra.Command) (*config.Config, *otelinfra.Logger, error) {
	cfg, err := config.LoadHardware()
	if err != nil {
		return nil, nil, err
	}
	logger := otelinfra.NewLoggerWithWriter(
		noop.NewTracerProvider().Tracer("hopperctl"),
		cmd.ErrOrStderr(),
		otelinfra.ParseLogLevel(logLevel),
	)
	return cfg, logger, nil
}

// hopperFor 額面に対応するホッパー設定を探す
func hopperFor(cfg *config.Config, denomination int64) (config.HopperConfig, error) {
	for _, h := range cfg.Hoppers {
		if h.Denomination == denomination {
			return h, nil
		}
	}
	return config.HopperConfig{}, fmt.Errorf("no hopper configured for denomination %d", denomination)
}

// claimHardware pigpio ドライバの場合はサーバーと同じロックを取る
func claimHardware(cfg *config.Config, logger *otelinfra.Logger, cmd *cobra.Command) (func(), error) {
	if cfg.Hardware.Driver != config.DriverPigpio {
		return func() {}, nil
	}
	l, err := lock.Acquire(cfg.Hardware.LockFile)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) && force {
			logger.Warn(cmd.Context(), "Hardware lock held, continuing because of --force", map[string]interface{}{
				"error": err.Error(),
			})
			return func() {}, nil
		}
		if errors.Is(err, lock.ErrHeld) {
			return nil, fmt.Errorf("%w; stop change-server or pass --force", err)
		}
		return nil, err
	}
	return func() { _ = l.Release() }, nil
}

// ledger 払い出した硬貨を在庫から減らす
type ledger interface {
	Adjust(ctx context.Context, req *dispenseapp.AdjustRequest) (*dispenseapp.LedgerResponse, error)
}

// openLedger テストで差し替える
var openLedger = openMySQLLedger

func openMySQLLedger(cfg *config.Config, logger *otelinfra.Logger) (ledger, func() error, error) {
	policy, err := cfg.Coin.Policy()
	if err != nil {
		return nil, nil, err
	}
	db, err := mysql.NewDB(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	inventoryRepo := mysql.NewInventoryRepository(db)
	changeService, err := service.NewChangeService(inventoryRepo, policy)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	metrics, err := otelinfra.NewMetrics("hopperctl")
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	svc := dispenseapp.NewDispenseApplicationService(
		changeService,
		inventoryRepo,
		mysql.NewDispenseRecordRepository(db),
		nil,
		logger,
		metrics,
		dispenseapp.Options{},
	)
	return svc, db.Close, nil
}

// ledgerFor --no-ledger でなければ台帳を開く
func ledgerFor(cfg *config.Config, logger *otelinfra.Logger) (ledger, func(), error) {
	if noLedger {
		return nil, func() {}, nil
	}
	l, closeFn, err := openLedger(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open inventory ledger (or pass --no-ledger): %w", err)
	}
	return l, func() { _ = closeFn() }, nil
}

// recordDispensed 確定した枚数を在庫の補正として記録する
func recordDispensed(cmd *cobra.Command, l ledger, d coin.Denomination, confirmed int64, source string) error {
	if l == nil || confirmed <= 0 {
		return nil
	}
	// 中断されても出た硬貨は記録する
	ctx := context.WithoutCancel(cmd.Context())
	resp, err := l.Adjust(ctx, &dispenseapp.AdjustRequest{
		Denomination: d.Value(),
		Delta:        -confirmed,
		Reason:       fmt.Sprintf("hopperctl %s: %d x %d confirmed", source, confirmed, d.Value()),
	})
	if err != nil {
		return fmt.Errorf("record %d x %d in inventory ledger: %w", confirmed, d.Value(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ledger: -%d x %d (record %s)\n", confirmed, d.Value(), resp.RecordID)
	return nil
}
