package handler

import (
	"context"
	"net/http"
	"slices"
	"time"
)

// Version is reported by the health endpoints
var Version = "dev"

// HealthChecker is a dependency that can report whether it is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	checks   map[string]HealthChecker
	required map[string]bool
}

// NewHealthHandler creates a new health handler. Required checks gate
// readiness; the rest only show up in the detailed report.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		checks:   make(map[string]HealthChecker),
		required: make(map[string]bool),
	}
}

// Add registers a named dependency check
func (h *HealthHandler) Add(name string, check HealthChecker, required bool) *HealthHandler {
	h.checks[name] = check
	h.required[name] = required
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
	Uptime  string            `json:"uptime,omitempty"`
}

var startTime = time.Now()

// GetHealth handles GET /health
// Basic health check - returns 200 OK if service is running
func GetHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(startTime).Round(time.Second).String(),
		Checks:  map[string]string{},
	}, http.StatusOK)
}

// GetLiveness handles GET /health/live
func GetLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "alive"}, http.StatusOK)
}

// GetReadiness handles GET /health/ready
// Ready once every required dependency answers.
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, name := range h.names() {
		if !h.required[name] {
			continue
		}
		if err := h.checks[name].Health(ctx); err != nil {
			respondError(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}

	respondJSON(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// GetHealthDetailed handles GET /health/detailed
// A failing optional dependency degrades the status without failing the check.
func (h *HealthHandler) GetHealthDetailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"api": "healthy"}
	status := "ok"
	httpStatus := http.StatusOK

	for _, name := range h.names() {
		if err := h.checks[name].Health(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			if h.required[name] {
				status = "unavailable"
				httpStatus = http.StatusServiceUnavailable
			} else if status == "ok" {
				status = "degraded"
			}
			continue
		}
		checks[name] = "healthy"
	}

	respondJSON(w, HealthResponse{
		Status:  status,
		Version: Version,
		Uptime:  time.Since(startTime).Round(time.Second).String(),
		Checks:  checks,
	}, httpStatus)
}

func (h *HealthHandler) names() []string {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
