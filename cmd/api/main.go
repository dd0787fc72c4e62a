// Package main is the entrypoint for the Snaplink API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/snaplink/snaplink/internal/analytics"
	"github.com/snaplink/snaplink/internal/cache"
	"github.com/snaplink/snaplink/internal/config"
	"github.com/snaplink/snaplink/internal/handler"
	"github.com/snaplink/snaplink/internal/handler/dto"
	"github.com/snaplink/snaplink/internal/metrics"
	"github.com/snaplink/snaplink/internal/middleware"
	"github.com/snaplink/snaplink/internal/migrations"
	"github.com/snaplink/snaplink/internal/ratelimit"
	"github.com/snaplink/snaplink/internal/repository"
	"github.com/snaplink/snaplink/internal/scheduler"
	"github.com/snaplink/snaplink/internal/server"
	"github.com/snaplink/snaplink/internal/service"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := initLogger(cfg)

	if cfg.MigrateOnStart {
		if err := migrate(cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("migrate: %s", sanitizeError(err, cfg.DatabaseURL))
		}
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database_connect_failed",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return errors.New("connect database")
	}
	defer repo.Close()
	logger.Info("database_connected", slog.String("database_url", redactURL(cfg.DatabaseURL)))

	// Redis is optional. Interfaces stay nil when it is disabled so the
	// services skip caching instead of calling a nil client.
	var (
		linkCache    service.LinkCache
		sessionCache service.SessionCache
		cacheHealth  handler.HealthChecker
	)
	if cfg.CacheEnabled() {
		cacheClient, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("redis_connect_failed",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return errors.New("connect redis")
		}
		defer cacheClient.Close()
		cacheClient.SetLinkTTL(cfg.LinkCacheTTL)
		linkCache, sessionCache, cacheHealth = cacheClient, cacheClient, cacheClient
		logger.Info("redis_connected", slog.String("redis_url", redactURL(cfg.RedisURL)))
	} else {
		logger.Info("redis_disabled")
	}

	metricsRecorder := metrics.NewPrometheus()

	recorder := analytics.NewRecorder(repo, logger, metricsRecorder, analytics.RecorderConfig{
		QueueSize: cfg.ClickQueueSize,
		Workers:   cfg.ClickWorkers,
	})
	if err := recorder.Start(); err != nil {
		return fmt.Errorf("start click recorder: %w", err)
	}

	linkService := service.NewLinkService(repo, linkCache, cfg.BaseURL, metricsRecorder, logger)
	userService := service.NewUserService(repo, repo, linkCache, sessionCache, logger)
	sessionService := service.NewSessionService(repo, repo, sessionCache, cfg.SessionTTL, logger)
	analyticsService := service.NewAnalyticsService(linkService, repo)

	limiter := ratelimit.New(logger)
	jobs := scheduler.New(logger)
	if err := jobs.Add(scheduler.Job{
		Name: "rate_limit_sweep",
		Spec: scheduler.Every(cfg.RateLimitSweepInterval),
		Run: func(ctx context.Context) error {
			limiter.SweepJob()
			return nil
		},
	}); err != nil {
		return err
	}
	if err := jobs.Add(scheduler.Job{
		Name: "session_purge",
		Spec: scheduler.Every(cfg.SessionPurgeInterval),
		Run:  sessionService.PurgeExpired,
	}); err != nil {
		return err
	}
	jobs.Start()

	validator := dto.NewValidator()
	router := handler.NewRouter(handler.RouterConfig{
		Logger:    logger,
		Links:     handler.NewLinkHandler(linkService, validator, logger),
		Analytics: handler.NewAnalyticsHandler(analyticsService, logger),
		Auth:      handler.NewAuthHandler(userService, sessionService, validator, logger),
		Users:     handler.NewUserHandler(userService, validator, logger),
		Redirect:  handler.NewRedirectHandler(linkService, recorder, logger),
		Health:    handler.NewHealthHandler(repo, cacheHealth, cfg.HealthDegradedThreshold),
		Metrics:   handler.NewMetricsHandler(metricsRecorder.Gatherer()),

		Authenticator: sessionService,
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
			Logger:   logger,
			Limiter:  limiter,
			Policies: cfg.Policies(),
			Enabled:  cfg.RateLimitEnabled,
			Metrics:  metricsRecorder,
		}),

		CORSOrigins:   cfg.GetCORSAllowedOrigins(),
		IsDevelopment: cfg.IsDevelopment(),
		APITimeout:    cfg.APITimeout,
		MaxBodySize:   cfg.MaxRequestBodySize,
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: the click recorder drains first, while the scheduler and the
	// database are still up.
	srv.OnShutdown("scheduler", jobs.Stop)
	srv.OnShutdown("click_recorder", recorder.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"rate_limit_enabled", cfg.RateLimitEnabled,
	)

	return srv.Run(ctx)
}

func migrate(databaseURL string, logger *slog.Logger) error {
	m, err := migrations.New(databaseURL, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "snaplink")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL drops the password from a connection string.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}
	if q := parsed.Query(); q.Has("password") {
		q.Set("password", "redacted")
		parsed.RawQuery = q.Encode()
	}

	return parsed.String()
}

// sanitizeError strips connection secrets from driver error messages.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
