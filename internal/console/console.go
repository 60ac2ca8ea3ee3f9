// Package console prints colored operator feedback for each submission.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	"ticket-kiosk/internal/input"
	"ticket-kiosk/internal/model"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Reporter wraps a handler and prints the outcome of every submission.
type Reporter struct {
	next input.Handler
	out  io.Writer
	mu   sync.Mutex
}

// NewReporter creates a reporter writing to out.
func NewReporter(next input.Handler, out io.Writer) *Reporter {
	return &Reporter{next: next, out: out}
}

// Handle implements input.Handler.
func (r *Reporter) Handle(ctx context.Context, source, raw string) (model.Outcome, error) {
	outcome, err := r.next.Handle(ctx, source, raw)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		red.Fprintf(r.out, "✗ error: %v\n", err)
		return outcome, err
	}
	Outcome(r.out, outcome)
	return outcome, nil
}

// Outcome prints one outcome line. OutcomeNone prints nothing.
func Outcome(w io.Writer, outcome model.Outcome) {
	switch outcome {
	case model.OutcomeGranted:
		green.Fprintln(w, "✓ access granted")
	case model.OutcomeAlreadyUsed:
		yellow.Fprintln(w, "⚠️  code already used")
	case model.OutcomeUnknown:
		red.Fprintln(w, "✗ code not found")
	case model.OutcomeMalformed:
		red.Fprintln(w, "✗ invalid code")
	}
}

// Info prints a highlighted informational line.
func Info(w io.Writer, format string, a ...any) {
	cyan.Fprintf(w, format+"\n", a...)
}

// Success prints a green line.
func Success(w io.Writer, format string, a ...any) {
	green.Fprintf(w, "✓ "+format+"\n", a...)
}

// Warning prints a yellow line.
func Warning(w io.Writer, format string, a ...any) {
	yellow.Fprintf(w, "⚠️  "+format+"\n", a...)
}

// Error prints a red line.
func Error(w io.Writer, format string, a ...any) {
	red.Fprintf(w, "✗ "+format+"\n", a...)
}

// Plain prints without color.
func Plain(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, format+"\n", a...)
}
