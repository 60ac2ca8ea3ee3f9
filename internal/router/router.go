package router

import (
	"net/http"

	"ticket-kiosk/internal/handler"
	"ticket-kiosk/internal/middleware"

	"github.com/rs/zerolog"
)

// New creates the ops router serving /health, /metrics and /status.
func New(
	statusHandler *handler.StatusHandler,
	metricsHandler http.Handler,
	logger zerolog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	mux.HandleFunc("/status", statusHandler.Get)
	mux.Handle("/metrics", metricsHandler)

	// Apply middleware in order: Recovery -> Logging -> LoopbackOnly
	var handler http.Handler = mux
	handler = middleware.LoopbackOnly(logger)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}
