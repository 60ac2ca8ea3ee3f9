package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Schema creates the table used by PostgresJournal.
const Schema = `
	CREATE TABLE IF NOT EXISTS redemption_events (
		id UUID PRIMARY KEY,
		occurred_at TIMESTAMPTZ NOT NULL,
		session TEXT NOT NULL,
		source TEXT NOT NULL,
		code TEXT NOT NULL,
		outcome TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_redemption_events_code ON redemption_events(code);
	CREATE INDEX IF NOT EXISTS idx_redemption_events_occurred_at ON redemption_events(occurred_at);
`

// PostgresJournal inserts events into a redemption_events table.
type PostgresJournal struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresJournal creates a journal backed by pool. The pool is owned by
// the caller and is not closed by Close.
func NewPostgresJournal(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresJournal {
	return &PostgresJournal{
		pool:   pool,
		logger: logger.With().Str("component", "postgres-journal").Logger(),
	}
}

// EnsureSchema creates the events table if it does not exist.
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.pool.Exec(ctx, Schema); err != nil {
		j.logger.Error().Err(err).Msg("failed to create journal schema")
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// Record inserts one event. Re-recording the same event ID is a no-op.
func (j *PostgresJournal) Record(ctx context.Context, event Event) error {
	query := `
		INSERT INTO redemption_events (id, occurred_at, session, source, code, outcome)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := j.pool.Exec(ctx, query,
		event.ID, event.Time, event.Session, event.Source, event.Code, event.Outcome)
	if err != nil {
		j.logger.Error().
			Err(err).
			Str("event_id", event.ID.String()).
			Msg("failed to insert journal event")
		return fmt.Errorf("failed to insert journal event: %w", err)
	}

	return nil
}

// CountByOutcome returns how many events were recorded for code, keyed by
// outcome.
func (j *PostgresJournal) CountByOutcome(ctx context.Context, code string) (map[string]int, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT outcome, COUNT(*) FROM redemption_events WHERE code = $1 GROUP BY outcome`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		counts[outcome] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal rows: %w", err)
	}

	return counts, nil
}

// Close is a no-op; the pool is owned by the caller.
func (j *PostgresJournal) Close() error {
	return nil
}
