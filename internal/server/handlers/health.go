package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"holdings-server/internal/shared/response"
)

const pingTimeout = 2 * time.Second

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Check reports whether a backing service answers
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Check
}

// NewHealthHandler reports on optional backing services. Components left out
// of checks are reported as disabled by the caller's choice of checks.
func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "health")

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	status := "healthy"
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			logger.Warn("Health check failed", "component", name, "error", err)
			components[name] = "disconnected"
			status = "degraded"
			continue
		}
		components[name] = "connected"
	}

	response.Success(w, http.StatusOK, HealthResponse{
		Status:     status,
		Timestamp:  time.Now().Format(time.RFC3339),
		Components: components,
	})
}
