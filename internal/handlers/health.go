package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"stravation/internal/contextutil"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	cache              Pinger
	configured         map[string]bool
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. configured lists which
// remote integrations have their settings (reported, not probed).
func NewHealthHandler(cache Pinger, configured map[string]bool) *HealthHandler {
	return &HealthHandler{
		cache:              cache,
		configured:         configured,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles GET /api/health.
// Returns 200 OK if the local cache is reachable, 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string

	if h.checkCache(checkCtx, logger) {
		checks["cache"] = "ok"
	} else {
		checks["cache"] = "error"
		issues = append(issues, "cache_unavailable")
	}

	// Remote APIs are not probed: a health check must not spend Strava quota.
	for name, ok := range h.configured {
		if ok {
			checks[name] = "configured"
		} else {
			checks[name] = "not_configured"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(ctx, w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	})
}

// checkCache checks if the SQLite cache answers.
func (h *HealthHandler) checkCache(ctx context.Context, logger *slog.Logger) bool {
	if h.cache == nil {
		return false
	}
	if err := h.cache.PingContext(ctx); err != nil {
		logger.WarnContext(ctx, "cache health check failed", "error", err)
		return false
	}
	return true
}
