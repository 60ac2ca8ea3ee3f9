package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"ticket-kiosk/internal/config"
	"ticket-kiosk/internal/console"
	"ticket-kiosk/internal/store"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var versionString = "dev"

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	versionString = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// Execute builds the command tree and runs it against os.Args.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		console.Error(root.ErrOrStderr(), "%v", err)
	}
	return err
}

// NewRootCmd creates the kiosk command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kiosk",
		Short: "Ticket redemption controller for unattended kiosks",
		Long: `kiosk validates ticket codes typed on the console or read by a
barcode scanner, moves each accepted code from the valid list to the used
list, and pulses a GPIO output to open the gate.

New codes are picked up from new_codes.txt files on removable media (and
optionally an S3 prefix) while the kiosk runs.`,
		Version: versionString,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().String("config", "", "YAML config file (default $KIOSK_CONFIG)")

	root.AddCommand(
		newRunCmd(),
		newCheckCmd(),
		newIngestCmd(),
		newStatusCmd(),
		newPulseCmd(),
		newHistoryCmd(),
	)

	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger opens the configured log destination. The returned closer must
// be called when the command finishes.
func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	out, err := config.OpenLogOutput(cfg.Logger.File)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return config.NewLogger(cfg.Logger, out), out, nil
}

func storeConfig(cfg *config.Config) *store.Config {
	return &store.Config{
		Dir:       cfg.Store.DataDir,
		ValidFile: cfg.Store.ValidFile,
		UsedFile:  cfg.Store.UsedFile,
		Mode:      store.Mode(cfg.Store.Mode),
	}
}

// dataPath resolves a relative path against the data directory.
func dataPath(cfg *config.Config, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cfg.Store.DataDir, path)
}

func openStore(cfg *config.Config, logger zerolog.Logger) (*store.Store, error) {
	st, err := store.Open(storeConfig(cfg), logger)
	if errors.Is(err, store.ErrStoreLocked) {
		return nil, fmt.Errorf("the kiosk is running on %s; stop it first or drop the batch on a watched mount", cfg.Store.DataDir)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}
