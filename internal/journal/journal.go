// Package journal records one event per handled code so that redemptions
// can be audited after the fact. Journaling is best effort: the redemption
// lists remain the source of truth.
package journal

import (
	"context"
	"time"

	"ticket-kiosk/internal/model"

	"github.com/google/uuid"
)

// Backend names accepted by configuration.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendNone     = "none"
)

// Event describes one handled code.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Time    time.Time `json:"time"`
	Session string    `json:"session"`
	Source  string    `json:"source"`
	Code    string    `json:"code"`
	Outcome string    `json:"outcome"`
}

// NewEvent creates an event stamped with a fresh ID and the current time.
func NewEvent(session, source, code string, outcome model.Outcome) Event {
	return Event{
		ID:      uuid.New(),
		Time:    time.Now().UTC(),
		Session: session,
		Source:  source,
		Code:    code,
		Outcome: outcome.String(),
	}
}

// Journal persists redemption events.
type Journal interface {
	// Record appends one event.
	Record(ctx context.Context, event Event) error

	// Close flushes and releases resources.
	Close() error
}

type nopJournal struct{}

// NewNop returns a journal that discards events.
func NewNop() Journal {
	return nopJournal{}
}

func (nopJournal) Record(ctx context.Context, event Event) error { return nil }
func (nopJournal) Close() error                                  { return nil }
