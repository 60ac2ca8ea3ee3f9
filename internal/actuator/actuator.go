// Package actuator drives the physical output that grants access after a
// successful redemption.
package actuator

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Actuator asserts a physical output for a fixed duration.
type Actuator interface {
	// Pulse asserts the output, waits d (or until ctx is done) and
	// deasserts it again. It blocks for the length of the pulse.
	Pulse(ctx context.Context, d time.Duration) error

	// Close releases the underlying hardware.
	Close() error
}

// nopActuator stands in when no hardware is available.
type nopActuator struct {
	logger zerolog.Logger
}

// NewNop returns an actuator that only logs a warning for every pulse.
func NewNop(logger zerolog.Logger) Actuator {
	return &nopActuator{
		logger: logger.With().Str("component", "actuator").Logger(),
	}
}

func (a *nopActuator) Pulse(ctx context.Context, d time.Duration) error {
	a.logger.Warn().Dur("duration", d).Msg("no actuator available, pulse not sent")
	return nil
}

func (a *nopActuator) Close() error {
	return nil
}
