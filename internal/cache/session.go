package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/snaplink/snaplink/internal/model"
)

const (
	sessionKeyPrefix = "session:"

	// DefaultSessionTTL caps how long a resolved session stays cached.
	DefaultSessionTTL = 5 * time.Minute
)

type cachedSession struct {
	SessionID string    `json:"sid"`
	UserID    string    `json:"uid"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"exp"`
}

// GetSession returns the cached principal for a token hash, or ErrCacheMiss.
// Entries past their session expiry are treated as misses.
func (c *Cache) GetSession(ctx context.Context, tokenHash string) (*model.Principal, error) {
	data, err := c.client.Get(ctx, sessionKeyPrefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var cached cachedSession
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, ErrCacheMiss
	}
	if !time.Now().Before(cached.ExpiresAt) {
		return nil, ErrCacheMiss
	}

	return &model.Principal{
		UserID:    cached.UserID,
		SessionID: cached.SessionID,
		Email:     cached.Email,
	}, nil
}

// SetSession caches a principal until the earlier of the session expiry and the cache TTL.
func (c *Cache) SetSession(ctx context.Context, tokenHash string, p *model.Principal, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if ttl > c.sessionTTL {
		ttl = c.sessionTTL
	}

	data, err := json.Marshal(cachedSession{
		SessionID: p.SessionID,
		UserID:    p.UserID,
		Email:     p.Email,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return c.client.Set(ctx, sessionKeyPrefix+tokenHash, data, ttl).Err()
}

// DeleteSession evicts a cached session, used on logout.
func (c *Cache) DeleteSession(ctx context.Context, tokenHash string) error {
	return c.client.Del(ctx, sessionKeyPrefix+tokenHash).Err()
}
