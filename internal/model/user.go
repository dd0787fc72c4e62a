package model

import "time"

// User represents an account that can own links.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Image         *string    `json:"image,omitempty"`
	PasswordHash  string     `json:"-"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DeletedAt     *time.Time `json:"-"`
}

// Session is a server-side login session. Only the hash of the bearer
// token is stored.
type Session struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"-"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsExpired reports whether the session is past its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Principal identifies the authenticated caller of a request.
type Principal struct {
	UserID    string
	SessionID string
	Email     string
}

// AccountDeletion lists what a user deletion removed.
type AccountDeletion struct {
	LinkSlugs          []string
	SessionTokenHashes []string
}
