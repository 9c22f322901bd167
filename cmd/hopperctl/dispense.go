package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"change-server/internal/domain/coin"
	"change-server/internal/domain/hopper"
	hwinfra "change-server/internal/infrastructure/hardware"

	"github.com/spf13/cobra"
)

func dispenseCmd() *cobra.Command {
	var (
		denomination int64
		count        int64
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dispense",
		Short: "Dispense coins from one hopper and report sensor-confirmed counts",
		Long: `Run a single hopper until the sensor confirms --count coins or the timeout
expires. Confirmed coins are subtracted from the inventory ledger as an
adjustment unless --no-ledger is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			d, err := coin.NewDenomination(denomination)
			if err != nil {
				return err
			}

			cfg, logger, err := loadHardware(cmd)
			if err != nil {
				return err
			}
			if _, err := hopperFor(cfg, denomination); err != nil {
				return err
			}
			hopperConfigs, err := cfg.HopperConfigs()
			if err != nil {
				return err
			}
			if timeout <= 0 {
				timeout = cfg.Dispense.HopperTimeout
			}

			release, err := claimHardware(cfg, logger, cmd)
			if err != nil {
				return err
			}
			defer release()

			// 払い出す前に台帳を開いておく
			l, closeLedger, err := ledgerFor(cfg, logger)
			if err != nil {
				return err
			}
			defer closeLedger()

			manager, err := hopper.NewConnectionManager(hwinfra.NewConnector(cfg, logger), hopperConfigs, cfg.Dispense.SettleDelay, logger)
			if err != nil {
				return err
			}
			defer manager.Close(context.Background())

			dispenser, err := manager.EnsureLive(cmd.Context())
			if err != nil {
				return err
			}

			outcome := dispenser.Dispense(cmd.Context(), coin.Breakdown{d: count}, timeout)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "requested: %d x %d\n", count, denomination)
			fmt.Fprintf(out, "confirmed: %d x %d\n", outcome.Dispensed[d], denomination)
			for _, r := range outcome.Hoppers {
				fmt.Fprintf(out, "hopper %s: valid=%d noise=%d\n", r.HopperID, r.Stats.Confirmed, r.Stats.Noise())
			}
			ledgerErr := recordDispensed(cmd, l, d, outcome.Dispensed[d], "dispense")
			return errors.Join(outcome.Err(), ledgerErr)
		},
	}

	cmd.Flags().Int64Var(&denomination, "denomination", 0, "coin denomination to dispense")
	cmd.Flags().Int64Var(&count, "count", 1, "number of coins")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "hopper timeout (default HOPPER_TIMEOUT)")
	_ = cmd.MarkFlagRequired("denomination")
	return cmd
}
