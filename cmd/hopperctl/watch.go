package main

import (
	"context"
	"fmt"
	"time"

	"change-server/internal/domain/coin"
	"change-server/internal/domain/hopper"
	hwinfra "change-server/internal/infrastructure/hardware"

	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	var (
		denomination int64
		duration     time.Duration
		motor        bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print sensor edges and how the pulse filter classifies them",
		Long: `Subscribe to one hopper's sensor and print every edge with its filter
classification until interrupted or --duration expires. With --motor the hopper
motor runs while watching and the confirmed coins are subtracted from the
inventory ledger unless --no-ledger is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadHardware(cmd)
			if err != nil {
				return err
			}
			h, err := hopperFor(cfg, denomination)
			if err != nil {
				return err
			}
			hopperConfigs, err := cfg.HopperConfigs()
			if err != nil {
				return err
			}
			var filterConfig hopper.FilterConfig
			for _, hc := range hopperConfigs {
				if hc.ID == h.ID {
					filterConfig = hc.Filter
				}
			}
			filter, err := hopper.NewSensorFilter(h.ID, filterConfig)
			if err != nil {
				return err
			}

			release, err := claimHardware(cfg, logger, cmd)
			if err != nil {
				return err
			}
			defer release()

			// 台帳はモーターを回す場合だけ使う
			var l ledger
			if motor {
				var closeLedger func()
				l, closeLedger, err = ledgerFor(cfg, logger)
				if err != nil {
					return err
				}
				defer closeLedger()
			}

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			handle, err := hwinfra.NewConnector(cfg, logger).Open(ctx)
			if err != nil {
				return fmt.Errorf("open %s hardware: %w", cfg.Hardware.Driver, err)
			}
			defer handle.Close()

			if err := handle.SetGlitchFilter(h.ID, cfg.Dispense.GlitchFilter); err != nil {
				return err
			}
			events, err := handle.SubscribeEdges(h.ID)
			if err != nil {
				return err
			}
			defer handle.Unsubscribe(h.ID)

			filter.Arm()
			if motor {
				if err := handle.SetActuator(h.ID, true); err != nil {
					return err
				}
			}
			stopMotor := func() {
				if motor {
					_ = handle.SetActuator(h.ID, false)
				}
			}
			defer stopMotor()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching hopper %s (%d)\n", h.ID, h.Denomination)
			for {
				select {
				case <-ctx.Done():
					stopMotor()
					stats := filter.Stats()
					fmt.Fprintf(out, "valid=%d false_short=%d false_long=%d stuck_open=%d\n",
						stats.Confirmed, stats.FalseShort, stats.FalseLong, stats.StuckOpen)
					return recordDispensed(cmd, l, coin.Denomination(h.Denomination), stats.Confirmed, "watch")
				case ev, ok := <-events:
					if !ok {
						stopMotor()
						if err := recordDispensed(cmd, l, coin.Denomination(h.Denomination), filter.Confirmed(), "watch"); err != nil {
							return fmt.Errorf("%w: %w", hopper.ErrEventStreamClosed, err)
						}
						return hopper.ErrEventStreamClosed
					}
					class := filter.Observe(ev)
					fmt.Fprintf(out, "%s %-7s %s\n", ev.At.Format("15:04:05.000"), ev.Edge, class)
				}
			}
		},
	}

	cmd.Flags().Int64Var(&denomination, "denomination", 0, "denomination of the hopper to watch")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (default: until interrupted)")
	cmd.Flags().BoolVar(&motor, "motor", false, "run the hopper motor while watching")
	_ = cmd.MarkFlagRequired("denomination")
	return cmd
}
