package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ticket-kiosk/internal/actuator"
	"ticket-kiosk/internal/config"
	"ticket-kiosk/internal/console"
	"ticket-kiosk/internal/database"
	"ticket-kiosk/internal/handler"
	"ticket-kiosk/internal/ingest"
	"ticket-kiosk/internal/input"
	"ticket-kiosk/internal/journal"
	"ticket-kiosk/internal/metrics"
	"ticket-kiosk/internal/redeemer"
	"ticket-kiosk/internal/router"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the kiosk: read codes, redeem them and watch for new batches",
		Long: `Run the kiosk until interrupted.

Codes are read from the console (one per line) and, when enabled, from a
barcode scanner input device. Every accepted code pulses the actuator.
Batch files are picked up from the configured mount roots every ingest
interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runKiosk(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runKiosk wires every component and blocks until ctx is done.
func runKiosk(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	logger, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	session := uuid.NewString()
	startedAt := time.Now().UTC()
	logger = logger.With().Str("session", session).Logger()
	logger.Info().
		Str("data_dir", cfg.Store.DataDir).
		Str("mode", cfg.Store.Mode).
		Msg("kiosk starting")

	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open redemption store")
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	m.InitRedemptions(input.SourceLine, input.SourceScanner)
	metrics.RegisterListSizes(reg, st.Counts)

	act := newActuator(cfg, logger)
	defer act.Close()

	j := newJournal(ctx, cfg, logger)
	defer j.Close()

	r := redeemer.New(redeemer.Config{
		PulseDuration: cfg.Actuator.Pulse,
		Session:       session,
	}, st, act, j, m, logger)
	h := console.NewReporter(r, out)

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				logger.Error().Err(err).Str("worker", name).Msg("worker stopped")
			}
		}()
	}

	watcher := ingest.NewWatcher(ingest.WatcherConfig{
		Interval:       cfg.Ingest.Interval,
		FirstMatchOnly: cfg.Ingest.FirstMatchOnly,
	}, st, m, logger, newIngestSources(ctx, cfg, logger)...)
	start("ingest", watcher.Run)

	if cfg.Input.ScannerEnabled {
		if _, err := locateScanner(cfg); err != nil {
			console.Warning(out, "scanner not available yet: %v", err)
		}
		open := func() (input.EventStream, error) {
			dev, err := openScanner(cfg, logger)
			if err != nil {
				return nil, err
			}
			return dev, nil
		}
		start("scanner", input.NewKeystrokeSource(input.SourceScanner, open, h, logger).Run)
	}

	if cfg.Input.LineEnabled {
		start("line", input.NewLineSource(input.SourceLine, in, h, logger).WithPrompt(out, "> ").Run)
	}

	var server *http.Server
	if cfg.Ops.Addr != "" {
		status := handler.NewStatusHandler(st, cfg.Store.Mode, session, startedAt, logger)
		server = &http.Server{
			Addr:         cfg.Ops.Addr,
			Handler:      router.New(status, metrics.Handler(reg), logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info().Str("address", cfg.Ops.Addr).Msg("ops endpoint started")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("ops endpoint failed")
			}
		}()
	}

	valid, used := st.Counts()
	logger.Info().Int("valid_count", valid).Int("used_count", used).Msg("kiosk ready")
	console.Info(out, "Ready. Scan or type a code and press Enter (%d valid, %d used).", valid, used)

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	console.Plain(out, "\nShutting down...")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown ops endpoint gracefully")
			server.Close()
		}
		cancel()
	}

	wg.Wait()
	logger.Info().Msg("kiosk stopped")

	return nil
}

func newActuator(cfg *config.Config, logger zerolog.Logger) actuator.Actuator {
	if !cfg.Actuator.Enabled {
		logger.Info().Msg("actuator disabled")
		return actuator.NewNop(logger)
	}

	act, err := actuator.NewGPIO(actuator.GPIOConfig{
		Chip: cfg.Actuator.GPIOChip,
		Pin:  cfg.Actuator.GPIOPin,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("GPIO not available, pulses will not be sent")
		return actuator.NewNop(logger)
	}
	return act
}

// newJournal opens the configured journal. Journaling is best effort, so a
// backend that cannot be reached is replaced by a no-op journal.
func newJournal(ctx context.Context, cfg *config.Config, logger zerolog.Logger) journal.Journal {
	j, err := openJournal(ctx, cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Str("backend", cfg.Journal.Backend).Msg("journal not available, events will not be recorded")
		return journal.NewNop()
	}
	logger.Info().Str("backend", cfg.Journal.Backend).Msg("journal opened")
	return j
}

func openJournal(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (journal.Journal, error) {
	switch cfg.Journal.Backend {
	case journal.BackendFile:
		return journal.NewFileJournal(dataPath(cfg, cfg.Journal.File))

	case journal.BackendPostgres:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		pj := journal.NewPostgresJournal(pool, logger)
		if err := pj.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &poolJournal{PostgresJournal: pj, close: pool.Close}, nil

	case journal.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return journal.NewRedisJournal(client, cfg.Redis.Stream), nil

	default:
		return journal.NewNop(), nil
	}
}

// poolJournal closes the pool it was opened with.
type poolJournal struct {
	*journal.PostgresJournal
	close func()
}

func (p *poolJournal) Close() error {
	p.close()
	return nil
}

func newIngestSources(ctx context.Context, cfg *config.Config, logger zerolog.Logger) []ingest.Source {
	sources := []ingest.Source{
		ingest.NewMountSource(cfg.Ingest.Mounts, cfg.Ingest.Filename, logger),
	}

	if cfg.S3.Enabled {
		src, err := ingest.NewS3Source(ctx, ingest.S3Config{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Prefix:   cfg.S3.Prefix,
			Filename: cfg.Ingest.Filename,
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialise S3 source, watching mounts only")
		} else {
			sources = append(sources, src)
		}
	}

	return sources
}

// locateScanner returns the configured device node, or discovers one by
// name when none is configured.
func locateScanner(cfg *config.Config) (string, error) {
	if cfg.Input.ScannerDevice != "" {
		return cfg.Input.ScannerDevice, nil
	}
	return input.FindDevice(cfg.Input.ScannerDeviceDir, cfg.Input.ScannerPatterns)
}

// openScanner locates and opens the scanner. It runs again after every
// stream failure, so a replugged scanner is found under its new node.
func openScanner(cfg *config.Config, logger zerolog.Logger) (*input.Device, error) {
	path, err := locateScanner(cfg)
	if err != nil {
		return nil, err
	}

	dev, err := input.OpenDevice(path, cfg.Input.ScannerGrab)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("device", dev.Path()).
		Str("name", dev.Name()).
		Bool("grabbed", cfg.Input.ScannerGrab).
		Msg("listening to scanner")

	return dev, nil
}
