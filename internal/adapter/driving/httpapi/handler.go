// Package httpapi is the HTTP driving adapter serving the health endpoint
// and Prometheus metrics.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/xertbridge/internal/application"
)

// Handler serves the operational HTTP surface. The poller has no data API;
// operators observe it through logs, /api/v1/health, and /metrics.
type Handler struct {
	health *application.HealthService
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(health *application.HealthService, logger *slog.Logger) *Handler {
	return &Handler{
		health: health,
		logger: logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns the process status with per-domain poll outcomes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toHealthResponse(h.health.Snapshot()))
}
