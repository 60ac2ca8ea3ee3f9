package commands

import (
	"time"

	"ticket-kiosk/internal/actuator"
	"ticket-kiosk/internal/console"

	"github.com/spf13/cobra"
)

func newPulseCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "pulse",
		Short: "Pulse the actuator once to test the wiring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger, logCloser, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logCloser.Close()

			if duration <= 0 {
				duration = cfg.Actuator.Pulse
			}

			act, err := actuator.NewGPIO(actuator.GPIOConfig{
				Chip: cfg.Actuator.GPIOChip,
				Pin:  cfg.Actuator.GPIOPin,
			}, logger)
			if err != nil {
				return err
			}
			defer act.Close()

			out := cmd.OutOrStdout()
			console.Info(out, "Sending HIGH on GPIO %d for %s...", cfg.Actuator.GPIOPin, duration)
			if err := act.Pulse(cmd.Context(), duration); err != nil {
				return err
			}
			console.Success(out, "Signal off.")
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "Pulse length (default from configuration)")

	return cmd
}
