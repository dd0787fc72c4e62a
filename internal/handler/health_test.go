package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestHealthHandler_Status(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		db         HealthChecker
		step       time.Duration
		wantStatus string
		wantCode   int
	}{
		{"fast database", &mockHealthChecker{}, 5 * time.Millisecond, StatusOK, http.StatusOK},
		{"slow database", &mockHealthChecker{}, 1500 * time.Millisecond, StatusDegraded, http.StatusServiceUnavailable},
		{"database down", &mockHealthChecker{err: errors.New("connection refused")}, time.Millisecond, StatusError, http.StatusServiceUnavailable},
		{"no database", nil, time.Millisecond, StatusError, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthHandler(tt.db, nil, time.Second)
			h.now = steppingClock(tt.step)

			rec := httptest.NewRecorder()
			h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp StatusResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.LatencyMs != tt.step.Milliseconds() {
				t.Errorf("latencyMs = %d, want %d", resp.LatencyMs, tt.step.Milliseconds())
			}
			if resp.Timestamp.IsZero() {
				t.Error("timestamp missing")
			}
		})
	}
}

func TestHealthHandler_DefaultThreshold(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(&mockHealthChecker{}, nil, 0)
	if h.threshold != DefaultDegradedThreshold {
		t.Errorf("threshold = %v", h.threshold)
	}
}

func TestHealthHandler_Healthz(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler(nil, nil, 0)

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestHealthHandler_Readyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		db, cache  HealthChecker
		wantCode   int
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			db:         &mockHealthChecker{},
			cache:      &mockHealthChecker{},
			wantCode:   http.StatusOK,
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name:       "database unhealthy",
			db:         &mockHealthChecker{err: errors.New("connection refused")},
			cache:      &mockHealthChecker{},
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "error", "redis": "ok"},
		},
		{
			name:       "cache disabled",
			db:         &mockHealthChecker{},
			wantCode:   http.StatusOK,
			wantChecks: map[string]string{"postgres": "ok", "redis": "not configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthHandler(tt.db, tt.cache, 0)
			rec := httptest.NewRecorder()
			h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			for name, want := range tt.wantChecks {
				if resp.Checks[name] != want {
					t.Errorf("check %s = %q, want %q", name, resp.Checks[name], want)
				}
			}
		})
	}
}
