package handler

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/snaplink/snaplink/internal/middleware"
)

// RouterConfig collects the handlers and middleware settings for NewRouter.
type RouterConfig struct {
	Logger *slog.Logger

	Links     *LinkHandler
	Analytics *AnalyticsHandler
	Auth      *AuthHandler
	Users     *UserHandler
	Redirect  *RedirectHandler
	Health    *HealthHandler
	Metrics   *MetricsHandler

	Authenticator middleware.Authenticator
	RateLimiter   *middleware.RateLimiter

	CORSOrigins   []string
	IsDevelopment bool
	APITimeout    time.Duration
	MaxBodySize   int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rl := cfg.RateLimiter
	if rl == nil {
		rl = middleware.NewRateLimiter(middleware.RateLimitConfig{Logger: logger})
	}
	h := New()

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))

	// Health checks (no auth required)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.APITimeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.APITimeout))
		}
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))

		r.Get("/health", cfg.Health.Status)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(middleware.AuthConfig{
				Logger:        logger,
				Authenticator: cfg.Authenticator,
			}))

			// Link creation has its own anonymous and per-user quotas.
			r.With(rl.Create).Post("/links", cfg.Links.Create)

			r.Group(func(r chi.Router) {
				r.Use(rl.Authenticated)

				r.Post("/auth/register", cfg.Auth.Register)
				r.Post("/auth/login", cfg.Auth.Login)

				r.Get("/links/{slug}", cfg.Links.Get)
				r.Get("/links/{slug}/analytics", cfg.Analytics.Report)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireUser)

					r.Post("/auth/logout", cfg.Auth.Logout)

					r.Get("/links", cfg.Links.List)
					r.Patch("/links/{slug}", cfg.Links.Update)
					r.Delete("/links/{slug}", cfg.Links.Delete)

					r.Get("/user/profile", cfg.Users.Profile)
					r.Patch("/user/profile", cfg.Users.UpdateProfile)
					r.Post("/user/password", cfg.Users.ChangePassword)
					r.Delete("/user", cfg.Users.Delete)
				})
			})
		})
	})

	// Redirects stay outside the API timeout and body limit.
	r.With(rl.Redirect).Get("/{slug}", cfg.Redirect.Redirect)

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
