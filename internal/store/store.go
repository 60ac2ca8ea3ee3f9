// Package store owns the persisted pair of code lists (valid and used) and
// the redemption transition between them.
//
// All mutations run under one exclusive lock and are flushed to disk before
// the call returns. Each list file is replaced by write-to-temp, fsync and
// rename, so a reader never observes a torn file. When a redemption has to
// rewrite both files, the used list is written first: a crash between the two
// renames leaves the code in both files, and Open resolves that overlap in
// favour of the used list.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"ticket-kiosk/internal/code"
	"ticket-kiosk/internal/model"

	"github.com/rs/zerolog"
)

// Mode selects how Redeem treats a valid code.
type Mode string

const (
	// ModeTrack moves redeemed codes from the valid list to the used list.
	ModeTrack Mode = "track"

	// ModeValidateOnly grants valid codes without recording the redemption.
	ModeValidateOnly Mode = "validate-only"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeTrack || m == ModeValidateOnly
}

var (
	// ErrStoreLocked is returned by Open when another process holds the store.
	ErrStoreLocked = errors.New("redemption store is locked by another process")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("redemption store is closed")
)

const lockFileName = ".kiosk.lock"

// Config holds the location of the persisted lists.
type Config struct {
	// Dir is the directory holding both list files and the lock file.
	Dir string

	// ValidFile and UsedFile are file names relative to Dir.
	ValidFile string
	UsedFile  string

	// Mode defaults to ModeTrack.
	Mode Mode
}

// DefaultConfig returns the file layout used by the kiosk scripts.
func DefaultConfig() *Config {
	return &Config{
		Dir:       ".",
		ValidFile: "list_valids.txt",
		UsedFile:  "list_useds.txt",
		Mode:      ModeTrack,
	}
}

func (c *Config) validPath() string { return filepath.Join(c.Dir, c.ValidFile) }
func (c *Config) usedPath() string  { return filepath.Join(c.Dir, c.UsedFile) }

// Snapshot is a consistent, sorted copy of both lists.
type Snapshot struct {
	Valid []string
	Used  []string
}

// Lookup reports what redeeming c against this snapshot would yield,
// without changing anything. It does not check the checksum.
func (s Snapshot) Lookup(c string) model.Outcome {
	if containsSorted(s.Used, c) {
		return model.OutcomeAlreadyUsed
	}
	if containsSorted(s.Valid, c) {
		return model.OutcomeGranted
	}
	return model.OutcomeUnknown
}

func containsSorted(list []string, c string) bool {
	i := sort.SearchStrings(list, c)
	return i < len(list) && list[i] == c
}

// Store is the single owner of the valid and used lists.
type Store struct {
	mu     sync.RWMutex
	cfg    Config
	valid  *code.Set
	used   *code.Set
	lock   *os.File
	closed bool
	logger zerolog.Logger
}

// Open loads both lists from disk and takes an exclusive process lock on the
// store directory. Missing list files are treated as empty lists.
func Open(cfg *Config, logger zerolog.Logger) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.Mode == "" {
		c.Mode = ModeTrack
	}
	if !c.Mode.Valid() {
		return nil, fmt.Errorf("invalid redemption mode: %s", c.Mode)
	}

	logger = logger.With().Str("component", "redemption-store").Logger()

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", c.Dir, err)
	}

	lock, err := acquireLock(filepath.Join(c.Dir, lockFileName))
	if err != nil {
		return nil, err
	}

	s := &Store{
		cfg:    c,
		lock:   lock,
		logger: logger,
	}

	if err := s.load(); err != nil {
		releaseLock(lock)
		return nil, err
	}

	logger.Info().
		Str("dir", c.Dir).
		Str("mode", string(c.Mode)).
		Int("valid_count", s.valid.Len()).
		Int("used_count", s.used.Len()).
		Msg("redemption store opened")

	return s, nil
}

// load reads both lists and removes from the valid list any code that is
// also in the used list.
func (s *Store) load() error {
	valid, err := readListFile(s.cfg.validPath())
	if err != nil {
		s.logger.Error().Err(err).Str("file", s.cfg.validPath()).Msg("failed to load valid list")
		return err
	}
	used, err := readListFile(s.cfg.usedPath())
	if err != nil {
		s.logger.Error().Err(err).Str("file", s.cfg.usedPath()).Msg("failed to load used list")
		return err
	}

	s.valid = code.NewSet(len(valid), valid...)
	s.used = code.NewSet(len(used), used...)

	var repaired []string
	for _, c := range valid {
		if s.used.Contains(c) {
			s.valid.Remove(c)
			repaired = append(repaired, c)
		}
	}

	if len(repaired) > 0 {
		s.logger.Warn().
			Int("count", len(repaired)).
			Strs("codes", repaired).
			Msg("codes present in both lists, keeping them as used")
		if err := writeListFile(s.cfg.validPath(), s.valid.Sorted()); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist repaired valid list")
			return err
		}
	}

	return nil
}

// Mode returns the redemption mode the store was opened with.
func (s *Store) Mode() Mode {
	return s.cfg.Mode
}

// Redeem atomically moves code from the valid list to the used list.
//
// It returns OutcomeAlreadyUsed if the code is in the used list,
// OutcomeUnknown if it is in neither list, and OutcomeGranted once the
// transition has been flushed to disk. In ModeValidateOnly a valid code is
// granted without any change to either list. On a persistence error both
// lists are left as they were and the error is returned.
func (s *Store) Redeem(ctx context.Context, c string) (model.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return model.OutcomeNone, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.OutcomeNone, ErrClosed
	}

	if s.used.Contains(c) {
		return model.OutcomeAlreadyUsed, nil
	}
	if !s.valid.Contains(c) {
		return model.OutcomeUnknown, nil
	}
	if s.cfg.Mode == ModeValidateOnly {
		return model.OutcomeGranted, nil
	}

	previousUsed := s.used.Sorted()

	s.valid.Remove(c)
	s.used.Add(c)

	if err := writeListFile(s.cfg.usedPath(), s.used.Sorted()); err != nil {
		s.valid.Add(c)
		s.used.Remove(c)
		s.logger.Error().Err(err).Str("code", c).Msg("failed to persist used list")
		return model.OutcomeNone, fmt.Errorf("failed to redeem code: %w", err)
	}

	if err := writeListFile(s.cfg.validPath(), s.valid.Sorted()); err != nil {
		s.valid.Add(c)
		s.used.Remove(c)
		s.logger.Error().Err(err).Str("code", c).Msg("failed to persist valid list")
		if rbErr := writeListFile(s.cfg.usedPath(), previousUsed); rbErr != nil {
			s.logger.Error().Err(rbErr).Str("code", c).Msg("failed to roll back used list")
		}
		return model.OutcomeNone, fmt.Errorf("failed to redeem code: %w", err)
	}

	s.logger.Debug().Str("code", c).Msg("code moved to used list")

	return model.OutcomeGranted, nil
}

// Ingest adds codes to the valid list and returns how many were new.
// Codes already in the valid list or already in the used list are skipped,
// so a used code is never made redeemable again and repeating an ingestion
// is harmless. The valid list is flushed to disk before Ingest returns.
func (s *Store) Ingest(ctx context.Context, codes []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	var added []string
	for _, c := range codes {
		if c == "" || s.used.Contains(c) {
			continue
		}
		if s.valid.Add(c) {
			added = append(added, c)
		}
	}

	if len(added) == 0 {
		return 0, nil
	}

	if err := writeListFile(s.cfg.validPath(), s.valid.Sorted()); err != nil {
		for _, c := range added {
			s.valid.Remove(c)
		}
		s.logger.Error().Err(err).Int("count", len(added)).Msg("failed to persist ingested codes")
		return 0, fmt.Errorf("failed to ingest codes: %w", err)
	}

	s.logger.Debug().
		Int("offered", len(codes)).
		Int("added", len(added)).
		Int("valid_count", s.valid.Len()).
		Msg("codes ingested")

	return len(added), nil
}

// Snapshot returns sorted copies of both lists taken under one read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Valid: s.valid.Sorted(),
		Used:  s.used.Sorted(),
	}
}

// Counts returns the sizes of the valid and used lists.
func (s *Store) Counts() (valid, used int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.valid.Len(), s.used.Len()
}

// Close releases the process lock. Further operations return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := releaseLock(s.lock); err != nil {
		s.logger.Error().Err(err).Msg("failed to release store lock")
		return err
	}

	s.logger.Info().Msg("redemption store closed")

	return nil
}

// ReadSnapshot reads both list files without taking the process lock.
// It is safe to call while another process owns the store because list
// files are only ever replaced by rename.
func ReadSnapshot(cfg *Config) (Snapshot, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	valid, err := readListFile(cfg.validPath())
	if err != nil {
		return Snapshot{}, err
	}
	used, err := readListFile(cfg.usedPath())
	if err != nil {
		return Snapshot{}, err
	}

	usedSet := code.NewSet(len(used), used...)
	validSet := code.NewSet(len(valid))
	for _, c := range valid {
		if !usedSet.Contains(c) {
			validSet.Add(c)
		}
	}

	return Snapshot{
		Valid: validSet.Sorted(),
		Used:  usedSet.Sorted(),
	}, nil
}
