package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker defines the interface for health checking components
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db       HealthChecker
	optional map[string]HealthChecker
}

// NewHealthHandler creates a new health handler. The database is required;
// cache and ethereum are optional and only degrade the reported status.
func NewHealthHandler(db, cache HealthChecker) *HealthHandler {
	h := &HealthHandler{
		db:       db,
		optional: make(map[string]HealthChecker),
	}
	if cache != nil {
		h.optional["cache"] = cache
	}
	return h
}

// WithChecker registers an optional dependency under name
func (h *HealthHandler) WithChecker(name string, checker HealthChecker) *HealthHandler {
	if checker != nil {
		h.optional[name] = checker
	}
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
	}

	for name, checker := range h.optional {
		if err := checker.HealthCheck(ctx); err != nil {
			response.Status = "degraded"
			response.Services[name] = "unhealthy: " + err.Error()
		} else {
			response.Services[name] = "healthy"
		}
	}

	// Database failure overrides degraded
	if err := h.db.HealthCheck(ctx); err != nil {
		response.Status = "unhealthy"
		response.Services["database"] = "unhealthy: " + err.Error()
	} else {
		response.Services["database"] = "healthy"
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, response)
}

// Ready handles GET /ready (Kubernetes readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.HealthCheck(ctx); err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// Live handles GET /live (Kubernetes liveness probe)
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("alive"))
}
