package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"ticket-kiosk/internal/console"
	"ticket-kiosk/internal/journal"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [CODE]",
		Short: "Show recent redemption events from the file journal",
		Long: `History prints the most recent events recorded in the file journal,
oldest first. With CODE, only events for that code are shown.`,
		Example: `  kiosk history
  kiosk history --limit 100
  kiosk history 123456789012345`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if cfg.Journal.Backend != journal.BackendFile {
				return fmt.Errorf("history needs the file journal, the configured backend is %s", cfg.Journal.Backend)
			}

			path := dataPath(cfg, cfg.Journal.File)
			events, err := journal.ReadFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				console.Info(cmd.OutOrStdout(), "No events recorded yet.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read journal %s: %w", path, err)
			}

			if len(args) == 1 {
				filtered := events[:0]
				for _, e := range events {
					if e.Code == args[0] {
						filtered = append(filtered, e)
					}
				}
				events = filtered
			}

			if limit > 0 && len(events) > limit {
				events = events[len(events)-limit:]
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				console.Info(out, "No matching events.")
				return nil
			}
			for _, e := range events {
				console.Plain(out, "%s  %-8s %-15s %s",
					e.Time.Local().Format(time.DateTime), e.Source, e.Code, e.Outcome)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Show at most this many events (0 for all)")

	return cmd
}
