// Package model defines domain entities for the application.
package model

import (
	"strconv"
	"time"
)

// MaxURLLength is the longest destination URL accepted for a link.
const MaxURLLength = 2048

// Link represents a shortened URL entity.
type Link struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	OriginalURL string     `json:"originalUrl"`
	UserID      *string    `json:"userId,omitempty"`
	CustomSlug  bool       `json:"customSlug"`
	ClickCount  int64      `json:"clickCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"-"`
}

// IsOwned reports whether the link belongs to a user.
func (l *Link) IsOwned() bool {
	return l.UserID != nil && *l.UserID != ""
}

// OwnedBy reports whether userID owns the link.
func (l *Link) OwnedBy(userID string) bool {
	return l.IsOwned() && userID != "" && *l.UserID == userID
}

// IsDeleted returns true once the link has been soft-deleted.
func (l *Link) IsDeleted() bool {
	return l.DeletedAt != nil
}

// CachedLink is the subset of a link kept in the Redis hash used by redirects.
type CachedLink struct {
	ID          string `redis:"id"`
	OriginalURL string `redis:"original_url"`
	UserID      string `redis:"user_id"`    // empty for anonymous links
	UpdatedAt   string `redis:"updated_at"` // Unix timestamp
}

// ToLink converts CachedLink back to a Link for the given slug.
func (c *CachedLink) ToLink(slug string) *Link {
	link := &Link{
		ID:          c.ID,
		Slug:        slug,
		OriginalURL: c.OriginalURL,
	}

	if c.UserID != "" {
		userID := c.UserID
		link.UserID = &userID
	}

	if c.UpdatedAt != "" {
		if ts, err := strconv.ParseInt(c.UpdatedAt, 10, 64); err == nil {
			link.UpdatedAt = time.Unix(ts, 0).UTC()
		}
	}

	return link
}

// ToCachedLink converts a Link to its cache representation.
func (l *Link) ToCachedLink() *CachedLink {
	cached := &CachedLink{
		ID:          l.ID,
		OriginalURL: l.OriginalURL,
		UpdatedAt:   strconv.FormatInt(l.UpdatedAt.Unix(), 10),
	}
	if l.UserID != nil {
		cached.UserID = *l.UserID
	}
	return cached
}
