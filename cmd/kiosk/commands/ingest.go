package commands

import (
	"fmt"

	"ticket-kiosk/internal/console"
	"ticket-kiosk/internal/ingest"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Add the codes in batch files to the valid list",
		Long: `Ingest reads one code per line from each FILE (gzip-compressed when the
name ends in .gz) and adds the codes that are neither valid nor used yet.

Ingest needs the store lock and fails while the kiosk is running; in that
case drop the file as new_codes.txt on a watched mount instead.`,
		Example: `  kiosk ingest new_codes.txt
  kiosk ingest --remove /media/pi/USB/new_codes.txt.gz`,
		Args: cobra.MinimumNArgs(1),
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

			st, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			w := ingest.NewWatcher(ingest.DefaultWatcherConfig(), st, nil, logger)

			out := cmd.OutOrStdout()
			total := 0
			for _, path := range args {
				added, err := w.ProcessBatch(cmd.Context(), "cli", ingest.NewFileBatch(path), remove)
				if err != nil {
					return fmt.Errorf("failed to ingest %s: %w", path, err)
				}
				console.Success(out, "%s: %d new codes", path, added)
				total += added
			}

			valid, used := st.Counts()
			console.Info(out, "%d codes added (%d valid, %d used)", total, valid, used)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "Delete each file after it has been ingested")

	return cmd
}
