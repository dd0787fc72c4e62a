package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snaplink/snaplink/internal/auth"
	"github.com/snaplink/snaplink/internal/handler/dto"
	"github.com/snaplink/snaplink/internal/metrics"
	"github.com/snaplink/snaplink/internal/model"
	"github.com/snaplink/snaplink/internal/ratelimit"
)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRateLimiter(m metrics.Recorder) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Logger:  slogDiscard(),
		Limiter: ratelimit.New(slogDiscard()),
		Policies: ratelimit.Policies{
			AnonymousCreate: ratelimit.Policy{Name: ratelimit.BucketAnonymousCreate, Max: 2, Window: time.Hour},
			Authenticated:   ratelimit.Policy{Name: ratelimit.BucketAuthenticated, Max: 3, Window: time.Minute},
			Redirect:        ratelimit.Policy{Name: ratelimit.BucketRedirect, Max: 1, Window: time.Minute},
		},
		Enabled: true,
		Metrics: m,
	})
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

func withUser(r *http.Request, id string) *http.Request {
	return r.WithContext(auth.ContextWithPrincipal(r.Context(), &model.Principal{UserID: id}))
}

func TestRateLimitCreate_AnonymousThenDenied(t *testing.T) {
	t.Parallel()

	m := metrics.NewInMemory()
	handler := newTestRateLimiter(m).Create(okHandler)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/links", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send(); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}

	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" || rec.Header().Get("X-RateLimit-Limit") != "2" {
		t.Errorf("rate limit headers = %v", rec.Header())
	}

	var body dto.RateLimitResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "RATE_LIMITED" || body.ResetTime.IsZero() {
		t.Errorf("body = %+v", body)
	}
	if m.Snapshot().RateLimited[ratelimit.BucketAnonymousCreate] != 1 {
		t.Errorf("rate limited metric = %v", m.Snapshot().RateLimited)
	}
}

func TestRateLimitCreate_AuthenticatedUsesUserPolicy(t *testing.T) {
	t.Parallel()

	handler := newTestRateLimiter(nil).Create(okHandler)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/links", nil), "u1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "3" {
			t.Errorf("limit header = %q, want authenticated policy", rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/links", nil), "u1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("fourth request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/links", nil), "u2"))
	if rec.Code != http.StatusOK {
		t.Errorf("other user status = %d", rec.Code)
	}
}

func TestRateLimitRedirect_PerLink(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.With(newTestRateLimiter(nil).Redirect).Get("/{slug}", okHandler)

	get := func(path string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Real-IP", "198.51.100.1")
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := get("/aaa"); code != http.StatusOK {
		t.Fatalf("first /aaa = %d", code)
	}
	if code := get("/aaa"); code != http.StatusTooManyRequests {
		t.Errorf("second /aaa = %d, want 429", code)
	}
	if code := get("/bbb"); code != http.StatusOK {
		t.Errorf("first /bbb = %d, want separate budget", code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{Limiter: ratelimit.New(nil), Policies: ratelimit.Policies{
		Authenticated: ratelimit.Policy{Name: "authenticated", Max: 1, Window: time.Minute},
	}})
	handler := rl.Authenticated(okHandler)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/", nil), "u"))
		if rec.Code != http.StatusOK {
			t.Fatalf("disabled limiter returned %d", rec.Code)
		}
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	if got := retryAfterSeconds(0); got != 1 {
		t.Errorf("retryAfterSeconds(0) = %d", got)
	}
	if got := retryAfterSeconds(1500 * time.Millisecond); got != 2 {
		t.Errorf("retryAfterSeconds(1.5s) = %d", got)
	}
}
