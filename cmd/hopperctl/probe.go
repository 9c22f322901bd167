package main

import (
	"fmt"

	hwinfra "change-server/internal/infrastructure/hardware"

	"github.com/spf13/cobra"
)

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that every configured hopper responds",
		Long: `Open the hardware connection, then for each hopper stop its motor,
apply the glitch filter and subscribe to its sensor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadHardware(cmd)
			if err != nil {
				return err
			}
			// 各ホッパーのモーターを止めるのでロックが要る
			release, err := claimHardware(cfg, logger, cmd)
			if err != nil {
				return err
			}
			defer release()

			handle, err := hwinfra.NewConnector(cfg, logger).Open(cmd.Context())
			if err != nil {
				return fmt.Errorf("open %s hardware: %w", cfg.Hardware.Driver, err)
			}
			defer handle.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "driver: %s live: %t\n", cfg.Hardware.Driver, handle.IsLive(cmd.Context()))

			failed := 0
			for _, h := range cfg.Hoppers {
				err := handle.SetActuator(h.ID, false)
				if err == nil {
					err = handle.SetGlitchFilter(h.ID, cfg.Dispense.GlitchFilter)
				}
				if err == nil {
					if _, err = handle.SubscribeEdges(h.ID); err == nil {
						err = handle.Unsubscribe(h.ID)
					}
				}
				if err != nil {
					failed++
					fmt.Fprintf(out, "hopper %s (%d): FAIL %v\n", h.ID, h.Denomination, err)
					continue
				}
				fmt.Fprintf(out, "hopper %s (%d): ok\n", h.ID, h.Denomination)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d hoppers failed", failed, len(cfg.Hoppers))
			}
			return nil
		},
	}
}
