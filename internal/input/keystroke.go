package input

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// EventStream delivers raw input events. Close must unblock a pending
// ReadEvents.
type EventStream interface {
	ReadEvents() ([]Event, error)
	Close() error
}

// StreamOpener opens the event stream. It is called again whenever the
// current stream fails, so it should locate the device afresh.
type StreamOpener func() (EventStream, error)

// KeystrokeSource turns key events from a scanner into submissions.
type KeystrokeSource struct {
	name    string
	open    StreamOpener
	handler Handler
	logger  zerolog.Logger

	retryInitial time.Duration
	retryMax     time.Duration
}

// NewKeystrokeSource creates a source reading the streams returned by open.
// Run owns every stream it opens and closes it when done.
func NewKeystrokeSource(name string, open StreamOpener, h Handler, logger zerolog.Logger) *KeystrokeSource {
	return &KeystrokeSource{
		name:         name,
		open:         open,
		handler:      h,
		logger:       logger.With().Str("component", "keystroke-input").Str("source", name).Logger(),
		retryInitial: defaultRetryInitial,
		retryMax:     defaultRetryMax,
	}
}

// Run reads events until ctx is done and then returns nil. A transient read
// error (EAGAIN, EINTR) is retried on the same stream. Any other failure
// closes the stream, drops the partial code and reopens the stream after a
// back-off, so an unplugged scanner is picked up again when it returns.
func (s *KeystrokeSource) Run(ctx context.Context) error {
	bo := newRetryBackOff(s.retryInitial, s.retryMax)
	var buf KeyBuffer

	for {
		if ctx.Err() != nil {
			return nil
		}

		stream, err := s.open()
		if err != nil {
			delay := bo.NextBackOff()
			s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("input stream not available")
			if !sleepCtx(ctx, delay) {
				return nil
			}
			continue
		}

		err = s.consume(ctx, stream, &buf, bo)
		if ctx.Err() != nil {
			return nil
		}

		if pending := buf.Pending(); pending != "" {
			s.logger.Warn().Int("digits", len(pending)).Msg("discarding partial code")
		}
		buf.Reset()

		delay := bo.NextBackOff()
		s.logger.Error().Err(err).Dur("retry_in", delay).Msg("input stream failed, reopening")
		if !sleepCtx(ctx, delay) {
			return nil
		}
	}
}

// consume reads stream until it fails or ctx is done.
func (s *KeystrokeSource) consume(ctx context.Context, stream EventStream, buf *KeyBuffer, bo *backoff.ExponentialBackOff) error {
	var once sync.Once
	closeStream := func() {
		once.Do(func() {
			if err := stream.Close(); err != nil {
				s.logger.Debug().Err(err).Msg("failed to close input stream")
			}
		})
	}
	stop := context.AfterFunc(ctx, closeStream)
	defer stop()
	defer closeStream()

	for {
		events, err := stream.ReadEvents()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isTransient(err) {
				delay := bo.NextBackOff()
				s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("transient input read error")
				if !sleepCtx(ctx, delay) {
					return nil
				}
				continue
			}
			return fmt.Errorf("failed to read input events: %w", err)
		}
		bo.Reset()

		for _, ev := range events {
			submission, ok := buf.Feed(ev)
			if !ok {
				continue
			}
			if _, err := s.handler.Handle(ctx, s.name, submission); err != nil {
				s.logger.Error().Err(err).Msg("submission failed")
			}
		}
	}
}
