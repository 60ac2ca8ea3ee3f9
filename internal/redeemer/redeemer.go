// Package redeemer turns a submitted code into an outcome: it validates the
// checksum, performs the redemption transition and pulses the actuator when
// access is granted.
package redeemer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ticket-kiosk/internal/actuator"
	"ticket-kiosk/internal/code"
	"ticket-kiosk/internal/journal"
	"ticket-kiosk/internal/metrics"
	"ticket-kiosk/internal/model"

	"github.com/rs/zerolog"
)

// DefaultPulseDuration is how long the actuator is held after a grant.
const DefaultPulseDuration = 2 * time.Second

// Store performs the redemption transition.
type Store interface {
	Redeem(ctx context.Context, code string) (model.Outcome, error)
}

// Redeemer handles codes submitted by any input source.
type Redeemer interface {
	// Handle processes one raw submission. Malformed, unknown and
	// already-used codes are outcomes, not errors; an error means the
	// redemption could not be persisted.
	Handle(ctx context.Context, source, raw string) (model.Outcome, error)
}

// Config holds redeemer settings.
type Config struct {
	PulseDuration time.Duration

	// Session tags journal events written by this process.
	Session string
}

type redeemer struct {
	cfg      Config
	store    Store
	actuator actuator.Actuator
	journal  journal.Journal
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// New creates a redeemer. j and m may be nil.
func New(cfg Config, store Store, act actuator.Actuator, j journal.Journal, m *metrics.Metrics, logger zerolog.Logger) Redeemer {
	if cfg.PulseDuration <= 0 {
		cfg.PulseDuration = DefaultPulseDuration
	}
	if j == nil {
		j = journal.NewNop()
	}
	return &redeemer{
		cfg:      cfg,
		store:    store,
		actuator: act,
		journal:  j,
		metrics:  m,
		logger:   logger.With().Str("component", "redeemer").Logger(),
	}
}

func (r *redeemer) Handle(ctx context.Context, source, raw string) (model.Outcome, error) {
	c := strings.TrimSpace(raw)
	if c == "" {
		r.logger.Debug().Str("source", source).Msg("empty submission ignored")
		return model.OutcomeNone, nil
	}

	if !code.IsWellFormed(c) {
		r.logger.Warn().Str("source", source).Str("code", c).Msg("malformed code")
		r.record(ctx, source, c, model.OutcomeMalformed)
		return model.OutcomeMalformed, nil
	}

	outcome, err := r.store.Redeem(ctx, c)
	if err != nil {
		r.logger.Error().Err(err).Str("source", source).Str("code", c).Msg("failed to redeem code")
		r.metrics.ObserveRedeemError()
		return model.OutcomeNone, fmt.Errorf("failed to redeem code: %w", err)
	}

	switch outcome {
	case model.OutcomeGranted:
		r.logger.Info().Str("source", source).Str("code", c).Msg("access granted")
		r.pulse(ctx, c)
	case model.OutcomeAlreadyUsed:
		r.logger.Warn().Str("source", source).Str("code", c).Msg("code already used")
	default:
		r.logger.Warn().Str("source", source).Str("code", c).Msg("code not in valid list")
	}

	r.record(ctx, source, c, outcome)
	return outcome, nil
}

// pulse runs after the redemption is committed. A failure does not undo the
// redemption.
func (r *redeemer) pulse(ctx context.Context, c string) {
	err := r.actuator.Pulse(ctx, r.cfg.PulseDuration)
	r.metrics.ObservePulse(err)
	if err != nil {
		r.logger.Error().Err(err).Str("code", c).Msg("actuator pulse failed")
	}
}

func (r *redeemer) record(ctx context.Context, source, c string, outcome model.Outcome) {
	r.metrics.ObserveRedemption(source, outcome)

	event := journal.NewEvent(r.cfg.Session, source, c, outcome)
	if err := r.journal.Record(context.WithoutCancel(ctx), event); err != nil {
		r.logger.Warn().Err(err).Str("event_id", event.ID.String()).Msg("failed to journal redemption")
		r.metrics.ObserveJournalError()
	}
}
