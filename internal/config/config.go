// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/snaplink/snaplink/internal/ratelimit"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	// Cache (Redis). Empty disables caching.
	RedisURL     string        `env:"REDIS_URL" envDefault:""`
	LinkCacheTTL time.Duration `env:"LINK_CACHE_TTL" envDefault:"24h"`

	// Base URL for short links (e.g., https://snap.ly)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	APITimeout      time.Duration `env:"API_TIMEOUT" envDefault:"15s"`

	// Rate limiting
	RateLimitEnabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitAnonCreateMax  int           `env:"RATE_LIMIT_ANON_CREATE_MAX" envDefault:"5"`
	RateLimitAnonCreateWin  time.Duration `env:"RATE_LIMIT_ANON_CREATE_WINDOW" envDefault:"1h"`
	RateLimitAuthMax        int           `env:"RATE_LIMIT_AUTH_MAX" envDefault:"100"`
	RateLimitAuthWindow     time.Duration `env:"RATE_LIMIT_AUTH_WINDOW" envDefault:"1m"`
	RateLimitRedirectMax    int           `env:"RATE_LIMIT_REDIRECT_MAX" envDefault:"1000"`
	RateLimitRedirectWindow time.Duration `env:"RATE_LIMIT_REDIRECT_WINDOW" envDefault:"1m"`
	RateLimitSweepInterval  time.Duration `env:"RATE_LIMIT_SWEEP_INTERVAL" envDefault:"5m"`
	SessionPurgeInterval    time.Duration `env:"SESSION_PURGE_INTERVAL" envDefault:"1h"`

	// Click recorder
	ClickQueueSize int `env:"CLICK_QUEUE_SIZE" envDefault:"1024"`
	ClickWorkers   int `env:"CLICK_WORKERS" envDefault:"1"`

	// Health
	HealthDegradedThreshold time.Duration `env:"HEALTH_DEGRADED_THRESHOLD" envDefault:"1000ms"`

	// Sessions
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 64KB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// CacheEnabled reports whether a Redis URL is configured.
func (c *Config) CacheEnabled() bool {
	return strings.TrimSpace(c.RedisURL) != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Policies builds the rate limit policies from configuration.
func (c *Config) Policies() ratelimit.Policies {
	return ratelimit.Policies{
		AnonymousCreate: ratelimit.Policy{Name: ratelimit.BucketAnonymousCreate, Max: c.RateLimitAnonCreateMax, Window: c.RateLimitAnonCreateWin},
		Authenticated:   ratelimit.Policy{Name: ratelimit.BucketAuthenticated, Max: c.RateLimitAuthMax, Window: c.RateLimitAuthWindow},
		Redirect:        ratelimit.Policy{Name: ratelimit.BucketRedirect, Max: c.RateLimitRedirectMax, Window: c.RateLimitRedirectWindow},
	}
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	for _, p := range []ratelimit.Policy{c.Policies().AnonymousCreate, c.Policies().Authenticated, c.Policies().Redirect} {
		if p.Max <= 0 || p.Window <= 0 {
			return fmt.Errorf("rate limit policy %s needs a positive max and window", p.Name)
		}
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.HealthDegradedThreshold <= 0 {
		return errors.New("HEALTH_DEGRADED_THRESHOLD must be positive")
	}
	return nil
}

// Load reads optional .env files, parses environment variables and returns
// a Config. Variables already set in the environment win over .env values.
// Returns an error if required variables are missing.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
