package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snaplink/snaplink/internal/auth"
	"github.com/snaplink/snaplink/internal/handler/dto"
	"github.com/snaplink/snaplink/internal/metrics"
	"github.com/snaplink/snaplink/internal/ratelimit"
)

// Response headers written by the rate limiter.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimitHeaders lists every header the limiter may set, in the order
// browsers should see them exposed.
var RateLimitHeaders = []string{
	HeaderRateLimitLimit,
	HeaderRateLimitRemaining,
	HeaderRateLimitReset,
	HeaderRetryAfter,
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger   *slog.Logger
	Limiter  *ratelimit.Limiter
	Policies ratelimit.Policies
	Enabled  bool
	Metrics  metrics.Recorder
}

// RateLimiter builds the per-route limiting middleware.
type RateLimiter struct {
	cfg RateLimitConfig
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	return &RateLimiter{cfg: cfg}
}

// Create limits link creation: anonymous callers per IP under the
// anonymous-create policy, signed-in callers per user under the
// authenticated policy. Apply after Authenticate.
func (rl *RateLimiter) Create(next http.Handler) http.Handler {
	return rl.limit(next, func(r *http.Request) (ratelimit.Policy, string) {
		userID := auth.UserIDFromContext(r.Context())
		p := rl.cfg.Policies.AnonymousCreate
		if userID != "" {
			p = rl.cfg.Policies.Authenticated
		}
		return p, ratelimit.Key(p, ratelimit.Identity(userID, r))
	})
}

// Authenticated limits authenticated API routes per caller.
func (rl *RateLimiter) Authenticated(next http.Handler) http.Handler {
	return rl.limit(next, func(r *http.Request) (ratelimit.Policy, string) {
		p := rl.cfg.Policies.Authenticated
		return p, ratelimit.Key(p, ratelimit.Identity(auth.UserIDFromContext(r.Context()), r))
	})
}

// Redirect limits each client per short link. The route must carry a
// {slug} URL parameter.
func (rl *RateLimiter) Redirect(next http.Handler) http.Handler {
	return rl.limit(next, func(r *http.Request) (ratelimit.Policy, string) {
		p := rl.cfg.Policies.Redirect
		return p, ratelimit.Key(p, ratelimit.Identity("", r), chi.URLParam(r, "slug"))
	})
}

func (rl *RateLimiter) limit(next http.Handler, pick func(r *http.Request) (ratelimit.Policy, string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled || rl.cfg.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		policy, key := pick(r)
		result := rl.cfg.Limiter.Check(key, policy)
		setRateLimitHeaders(w, result)

		if !result.Success {
			retryAfter := retryAfterSeconds(result.RetryAfter(time.Now()))
			rl.cfg.Metrics.IncRateLimited(policy.Name)
			rl.cfg.Logger.Warn("rate_limit_exceeded",
				slog.String("bucket", policy.Name),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.Int("retry_after_seconds", retryAfter),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			w.Header().Set(HeaderRetryAfter, strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, dto.RateLimitResponse{
				Error:     "Too many requests",
				Code:      "RATE_LIMITED",
				ResetTime: result.ResetTime.UTC(),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
	w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(res.ResetTime.Unix(), 10))
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
