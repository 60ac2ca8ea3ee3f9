// Package input reads submitted codes from the operator's line input and
// from keyboard-emulating barcode scanners.
package input

import (
	"context"

	"ticket-kiosk/internal/model"
)

// Source names reported to the handler.
const (
	SourceLine    = "line"
	SourceScanner = "scanner"
)

// Handler receives every completed submission.
type Handler interface {
	Handle(ctx context.Context, source, raw string) (model.Outcome, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, source, raw string) (model.Outcome, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, source, raw string) (model.Outcome, error) {
	return f(ctx, source, raw)
}
