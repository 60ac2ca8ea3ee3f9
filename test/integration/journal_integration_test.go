package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ticket-kiosk/internal/actuator"
	"ticket-kiosk/internal/journal"
	"ticket-kiosk/internal/model"
	"ticket-kiosk/internal/redeemer"
	"ticket-kiosk/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	codeA = "123456789012345"
	codeB = "111111111111115"
)

func TestPostgresJournal_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	j := journal.NewPostgresJournal(testDB.Pool, zerolog.Nop())

	ctx := context.Background()

	t.Run("EnsureSchema is idempotent", func(t *testing.T) {
		require.NoError(t, j.EnsureSchema(ctx))
		require.NoError(t, j.EnsureSchema(ctx))
	})

	t.Run("Record and count by outcome", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		events := []journal.Event{
			journal.NewEvent("s1", "line", codeA, model.OutcomeGranted),
			journal.NewEvent("s1", "scanner", codeA, model.OutcomeAlreadyUsed),
			journal.NewEvent("s1", "scanner", codeA, model.OutcomeAlreadyUsed),
			journal.NewEvent("s1", "line", codeB, model.OutcomeUnknown),
		}
		for _, e := range events {
			require.NoError(t, j.Record(ctx, e))
		}

		counts, err := j.CountByOutcome(ctx, codeA)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"granted": 1, "already_used": 2}, counts)
	})

	t.Run("Recording the same event twice stores it once", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		e := journal.NewEvent("s1", "line", codeB, model.OutcomeGranted)
		require.NoError(t, j.Record(ctx, e))
		require.NoError(t, j.Record(ctx, e))

		counts, err := j.CountByOutcome(ctx, codeB)
		require.NoError(t, err)
		assert.Equal(t, 1, counts["granted"])
	})

	t.Run("Unknown code has no events", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		counts, err := j.CountByOutcome(ctx, codeA)
		require.NoError(t, err)
		assert.Empty(t, counts)
	})

	t.Run("Cancelled context fails", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := j.Record(cancelled, journal.NewEvent("s1", "line", codeA, model.OutcomeGranted))
		assert.Error(t, err)
	})
}

func TestRedeemer_PostgresJournal_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	logger := zerolog.Nop()

	cfg := store.DefaultConfig()
	cfg.Dir = t.TempDir()
	st, err := store.Open(cfg, logger)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, err = st.Ingest(ctx, []string{codeA})
	require.NoError(t, err)

	r := redeemer.New(redeemer.Config{PulseDuration: time.Millisecond, Session: "integration"},
		st, actuator.NewNop(logger), journal.NewPostgresJournal(testDB.Pool, logger), nil, logger)

	outcome, err := r.Handle(ctx, "line", codeA)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeGranted, outcome)

	outcome, err = r.Handle(ctx, "scanner", codeA)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAlreadyUsed, outcome)

	counts, err := journal.NewPostgresJournal(testDB.Pool, logger).CountByOutcome(ctx, codeA)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"granted": 1, "already_used": 1}, counts)

	snap, err := store.ReadSnapshot(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{codeA}, snap.Used)
	assert.Empty(t, snap.Valid)
	assert.FileExists(t, filepath.Join(cfg.Dir, cfg.UsedFile))
}
