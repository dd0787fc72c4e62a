package handler

import (
	"context"
	"net/http"
	"time"
)

// DefaultDegradedThreshold is the database round-trip above which the
// service reports itself degraded.
const DefaultDegradedThreshold = 1000 * time.Millisecond

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	db        HealthChecker
	cache     HealthChecker
	threshold time.Duration
	now       func() time.Time
}

// NewHealthHandler creates a new HealthHandler.
// Pass nil for cache when Redis is not configured.
func NewHealthHandler(db, cache HealthChecker, threshold time.Duration) *HealthHandler {
	if threshold <= 0 {
		threshold = DefaultDegradedThreshold
	}
	return &HealthHandler{
		db:        db,
		cache:     cache,
		threshold: threshold,
		now:       time.Now,
	}
}

// Health status values reported by /api/health.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// StatusResponse is the body of GET /api/health.
type StatusResponse struct {
	Status    string    `json:"status"`
	LatencyMs int64     `json:"latencyMs"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Status times a database round-trip. It answers 200 when the database is
// fast, 503 "degraded" above the threshold and 503 "error" on failure.
//
// GET /api/health
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := h.now()
	var err error
	if h.db != nil {
		err = h.db.Ping(ctx)
	}
	latency := h.now().Sub(start)

	resp := StatusResponse{
		Status:    StatusOK,
		LatencyMs: latency.Milliseconds(),
		Timestamp: h.now().UTC(),
	}
	code := http.StatusOK
	switch {
	case err != nil || h.db == nil:
		resp.Status = StatusError
		code = http.StatusServiceUnavailable
	case latency > h.threshold:
		resp.Status = StatusDegraded
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, code, resp)
}

// Healthz reports liveness.
// It returns 200 if the server is running.
// No dependency checks; the process being up is enough.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz reports readiness.
// It checks all dependencies and returns 200 only if all are healthy.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	for name, checker := range map[string]HealthChecker{"postgres": h.db, "redis": h.cache} {
		if checker == nil {
			checks[name] = "not configured"
			continue
		}
		if err := checker.Ping(ctx); err != nil {
			checks[name] = "error"
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := "ok"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, HealthResponse{Status: status, Checks: checks})
}
