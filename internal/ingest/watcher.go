package ingest

import (
	"context"
	"fmt"
	"time"

	"ticket-kiosk/internal/code"
	"ticket-kiosk/internal/metrics"

	"github.com/rs/zerolog"
)

// DefaultInterval is the pause between two scans.
const DefaultInterval = 10 * time.Second

// WatcherConfig controls the scan loop.
type WatcherConfig struct {
	Interval time.Duration

	// FirstMatchOnly ends a scan after the first batch found, so only one
	// device is handled per cycle.
	FirstMatchOnly bool
}

// DefaultWatcherConfig returns a 10s interval with first-match-only scans.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Interval:       DefaultInterval,
		FirstMatchOnly: true,
	}
}

// Watcher periodically scans its sources and ingests discovered batches.
type Watcher struct {
	cfg     WatcherConfig
	sources []Source
	store   Ingester
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewWatcher creates a watcher visiting sources in the given order. m may
// be nil.
func NewWatcher(cfg WatcherConfig, store Ingester, m *metrics.Metrics, logger zerolog.Logger, sources ...Source) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Watcher{
		cfg:     cfg,
		sources: sources,
		store:   store,
		metrics: m,
		logger:  logger.With().Str("component", "ingest-watcher").Logger(),
	}
}

// Run scans immediately and then once per interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info().
		Dur("interval", w.cfg.Interval).
		Int("sources", len(w.sources)).
		Msg("ingest watcher started")

	w.ScanOnce(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("ingest watcher stopped")
			return nil
		case <-ticker.C:
			w.ScanOnce(ctx)
		}
	}
}

// ScanOnce visits every source once and returns the number of codes added.
// Errors are logged; a failing source or batch never stops the scan of the
// others. With FirstMatchOnly the scan ends after the first batch that is
// processed successfully; a batch that fails is skipped for this cycle.
func (w *Watcher) ScanOnce(ctx context.Context) int {
	total := 0
	for _, src := range w.sources {
		if ctx.Err() != nil {
			return total
		}

		batches, err := src.Discover(ctx)
		if err != nil {
			w.logger.Warn().Err(err).Str("source", src.Name()).Msg("batch discovery failed")
		}

		for _, b := range batches {
			added, err := w.ProcessBatch(ctx, src.Name(), b, true)
			if err != nil {
				if ctx.Err() != nil {
					return total
				}
				continue
			}
			total += added
			if w.cfg.FirstMatchOnly {
				return total
			}
		}
	}
	return total
}

// ProcessBatch reads b, ingests its codes and, when remove is set, deletes
// it. An empty batch is removed without touching the store. A read or
// ingest failure leaves the batch in place and is returned. A removal
// failure is logged and counted but not returned: the codes are already
// stored, and ingesting them again is a no-op.
func (w *Watcher) ProcessBatch(ctx context.Context, source string, b Batch, remove bool) (int, error) {
	log := w.logger.With().Str("source", source).Str("batch", b.Location()).Logger()

	codes, err := readBatch(ctx, b)
	if err != nil {
		log.Error().Err(err).Msg("failed to read batch")
		w.metrics.ObserveBatch(source, metrics.BatchReadError, 0)
		return 0, err
	}

	if len(codes) == 0 {
		log.Info().Msg("batch is empty")
		w.metrics.ObserveBatch(source, metrics.BatchEmpty, 0)
		if remove {
			w.removeBatch(ctx, log, b)
		}
		return 0, nil
	}

	added, err := w.store.Ingest(ctx, codes)
	if err != nil {
		log.Error().Err(err).Int("codes", len(codes)).Msg("failed to ingest batch")
		w.metrics.ObserveBatch(source, metrics.BatchStoreError, 0)
		return 0, fmt.Errorf("failed to ingest batch %s: %w", b.Location(), err)
	}

	w.metrics.ObserveBatch(source, metrics.BatchIngested, added)
	log.Info().
		Int("codes", len(codes)).
		Int("added", added).
		Msg("batch ingested")

	if remove {
		w.removeBatch(ctx, log, b)
	}

	return added, nil
}

func (w *Watcher) removeBatch(ctx context.Context, log zerolog.Logger, b Batch) {
	if err := b.Remove(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to remove batch, it will be ingested again")
		w.metrics.ObserveRemoveError()
	}
}

func readBatch(ctx context.Context, b Batch) ([]string, error) {
	raw, err := b.Open(ctx)
	if err != nil {
		return nil, err
	}

	rc, err := code.OpenList(b.Location(), raw)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return code.ReadList(rc)
}
