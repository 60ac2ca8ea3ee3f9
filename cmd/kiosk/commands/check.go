package commands

import (
	"fmt"
	"strings"

	"ticket-kiosk/internal/code"
	"ticket-kiosk/internal/console"
	"ticket-kiosk/internal/model"
	"ticket-kiosk/internal/store"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check CODE...",
		Short: "Check codes without redeeming them",
		Long: `Check reports, for every code, whether it is malformed, redeemable,
already used or unknown. The lists are read without taking the store lock,
so check works while the kiosk is running. Nothing is modified.

Exits with an error when any code is not redeemable.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			snap, err := store.ReadSnapshot(storeConfig(cfg))
			if err != nil {
				return fmt.Errorf("failed to read code lists: %w", err)
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, arg := range args {
				c := strings.TrimSpace(arg)
				outcome := model.OutcomeMalformed
				if code.IsWellFormed(c) {
					outcome = snap.Lookup(c)
				}

				switch outcome {
				case model.OutcomeGranted:
					console.Success(out, "%s: redeemable", c)
				case model.OutcomeAlreadyUsed:
					console.Warning(out, "%s: %s", c, outcome.Err())
					failed++
				default:
					console.Error(out, "%s: %s", c, outcome.Err())
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d codes are not redeemable", failed, len(args))
			}
			return nil
		},
	}
}
