package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/snaplink/snaplink/internal/model"
)

const (
	linkKeyPrefix     = "link:"
	negCacheKeySuffix = ":neg"

	// DefaultLinkTTL is the TTL for cached link data.
	DefaultLinkTTL = 24 * time.Hour

	// NegativeCacheTTL is the TTL for "no such slug" entries.
	NegativeCacheTTL = 5 * time.Minute
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

func linkKey(slug string) string    { return linkKeyPrefix + slug }
func negLinkKey(slug string) string { return linkKeyPrefix + slug + negCacheKeySuffix }

// GetLink returns the cached link for slug or ErrCacheMiss.
func (c *Cache) GetLink(ctx context.Context, slug string) (*model.Link, error) {
	var cached model.CachedLink
	res := c.client.HGetAll(ctx, linkKey(slug))
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(res.Val()) == 0 {
		return nil, ErrCacheMiss
	}
	if err := res.Scan(&cached); err != nil {
		return nil, fmt.Errorf("decode cached link: %w", err)
	}
	if cached.OriginalURL == "" {
		return nil, ErrCacheMiss
	}
	return cached.ToLink(slug), nil
}

// SetLink stores a live link and clears any negative entry for its slug.
func (c *Cache) SetLink(ctx context.Context, link *model.Link) error {
	cached := link.ToCachedLink()

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, linkKey(link.Slug))
	pipe.HSet(ctx, linkKey(link.Slug), cached)
	pipe.Expire(ctx, linkKey(link.Slug), c.linkTTL)
	pipe.Del(ctx, negLinkKey(link.Slug))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache link: %w", err)
	}
	return nil
}

// DeleteLink removes both the positive and negative entries for slug.
func (c *Cache) DeleteLink(ctx context.Context, slug string) error {
	if err := c.client.Del(ctx, linkKey(slug), negLinkKey(slug)).Err(); err != nil {
		return fmt.Errorf("failed to delete link from cache: %w", err)
	}
	return nil
}

// IsNegativelyCached reports whether slug was recently looked up and not found.
func (c *Cache) IsNegativelyCached(ctx context.Context, slug string) (bool, error) {
	n, err := c.client.Exists(ctx, negLinkKey(slug)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}
	return n > 0, nil
}

// SetNegativeCache marks slug as not found for NegativeCacheTTL.
func (c *Cache) SetNegativeCache(ctx context.Context, slug string) error {
	if err := c.client.SetEx(ctx, negLinkKey(slug), "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}
