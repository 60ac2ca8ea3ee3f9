package handler

import (
	"net/http"
	"time"

	"ticket-kiosk/internal/model"

	"github.com/rs/zerolog"
)

// Counter reports the current list sizes.
type Counter interface {
	Counts() (valid, used int)
}

// StatusHandler serves the kiosk status.
type StatusHandler struct {
	counter   Counter
	mode      string
	session   string
	startedAt time.Time
	logger    zerolog.Logger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(counter Counter, mode, session string, startedAt time.Time, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		counter:   counter,
		mode:      mode,
		session:   session,
		startedAt: startedAt,
		logger:    logger.With().Str("handler", "status").Logger(),
	}
}

// Get handles GET /status requests.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	valid, used := h.counter.Counts()

	writeJSON(w, http.StatusOK, model.StatusResponse{
		Mode:       h.mode,
		ValidCount: valid,
		UsedCount:  used,
		StartedAt:  h.startedAt,
		SessionID:  h.session,
	})
}
