// Package testutil holds helpers and in-memory fakes shared by tests.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/snaplink/snaplink/internal/migrations"
	"github.com/snaplink/snaplink/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 727274

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema migrates the database down and back up so every table is empty.
func ResetSchema(databaseURL string) error {
	m, err := migrations.New(databaseURL, DiscardLogger())
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	if err := m.Up(); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestLink creates a live link with sensible defaults. An empty owner
// makes an anonymous link.
func NewTestLink(t testing.TB, slug, ownerID string) *model.Link {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	link := &model.Link{
		ID:          ulid.Make().String(),
		Slug:        slug,
		OriginalURL: "https://example.com/" + slug,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ownerID != "" {
		owner := ownerID
		link.UserID = &owner
	}
	return link
}

// NewTestUser creates a user with a placeholder password hash.
func NewTestUser(t testing.TB, email string) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "$argon2id$v=19$m=16,t=1,p=1$c2FsdA$aGFzaA",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// UniqueSlug generates a valid slug that is unlikely to collide across tests.
func UniqueSlug(prefix string) string {
	id := strings.ToLower(ulid.Make().String())
	return prefix + "-" + id[len(id)-8:]
}
