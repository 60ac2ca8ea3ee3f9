package commands

import (
	"encoding/json"
	"fmt"

	"ticket-kiosk/internal/console"
	"ticket-kiosk/internal/model"
	"ticket-kiosk/internal/store"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the size of the valid and used lists",
		Long: `Status reads both lists without taking the store lock, so it can be run
while the kiosk is running.`,
		Args: cobra.NoArgs,
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
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(model.StatusResponse{
					Mode:       cfg.Store.Mode,
					ValidCount: len(snap.Valid),
					UsedCount:  len(snap.Used),
				})
			}

			console.Info(out, "Data directory: %s", cfg.Store.DataDir)
			console.Plain(out, "Mode:  %s", cfg.Store.Mode)
			console.Plain(out, "Valid: %d", len(snap.Valid))
			console.Plain(out, "Used:  %d", len(snap.Used))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")

	return cmd
}
