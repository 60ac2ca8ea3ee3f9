package actuator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warthog618/go-gpiocdev"
)

// GPIOConfig identifies a GPIO line on a character-device chip.
type GPIOConfig struct {
	// Chip is the GPIO chip name (gpiochip0) or device path.
	Chip string

	// Pin is the line offset on the chip. On a Raspberry Pi header this is
	// the BCM number.
	Pin int
}

// DefaultGPIOConfig returns the machine-start line used by the kiosk board.
func DefaultGPIOConfig() GPIOConfig {
	return GPIOConfig{
		Chip: "gpiochip0",
		Pin:  22,
	}
}

const consumer = "ticket-kiosk"

// Line is a requested output line.
type Line interface {
	SetValue(value int) error
	Close() error
}

// requestOutput requests a line as an output driven low.
func requestOutput(chip string, offset int) (Line, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, err
	}
	return l, nil
}

// gpioActuator pulses a GPIO line. Pulses are serialized so that two
// grants in quick succession produce two distinct pulses.
type gpioActuator struct {
	mu     sync.Mutex
	line   Line
	closed bool
	logger zerolog.Logger
}

// NewGPIO requests the configured line as an output, initially low. It fails
// if the chip or line is not available.
func NewGPIO(cfg GPIOConfig, logger zerolog.Logger) (Actuator, error) {
	return newGPIO(cfg, requestOutput, logger)
}

func newGPIO(cfg GPIOConfig, request func(chip string, offset int) (Line, error), logger zerolog.Logger) (*gpioActuator, error) {
	logger = logger.With().Str("component", "actuator").Str("chip", cfg.Chip).Int("pin", cfg.Pin).Logger()

	if cfg.Pin < 0 {
		return nil, fmt.Errorf("invalid gpio line %d", cfg.Pin)
	}

	line, err := request(cfg.Chip, cfg.Pin)
	if err != nil {
		return nil, fmt.Errorf("failed to request gpio %s:%d: %w", cfg.Chip, cfg.Pin, err)
	}

	logger.Info().Msg("gpio actuator initialised")

	return &gpioActuator{
		line:   line,
		logger: logger,
	}, nil
}

// Pulse drives the line high for d. The line is always driven low again,
// including when ctx is cancelled mid-pulse.
func (a *gpioActuator) Pulse(ctx context.Context, d time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("failed to start pulse: actuator closed")
	}

	if err := a.line.SetValue(1); err != nil {
		a.logger.Error().Err(err).Msg("failed to drive gpio high")
		return fmt.Errorf("failed to start pulse: %w", err)
	}

	timer := time.NewTimer(d)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		a.logger.Warn().Msg("pulse cut short by cancellation")
	}

	if err := a.line.SetValue(0); err != nil {
		a.logger.Error().Err(err).Msg("failed to drive gpio low")
		return fmt.Errorf("failed to end pulse: %w", err)
	}

	a.logger.Debug().Dur("duration", d).Msg("pulse sent")

	return nil
}

// Close drives the line low and releases it.
func (a *gpioActuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	if err := a.line.SetValue(0); err != nil {
		a.logger.Warn().Err(err).Msg("failed to drive gpio low on close")
	}
	if err := a.line.Close(); err != nil {
		return fmt.Errorf("failed to release gpio line: %w", err)
	}
	return nil
}
