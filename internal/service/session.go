package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/snaplink/snaplink/internal/auth"
	"github.com/snaplink/snaplink/internal/cache"
	"github.com/snaplink/snaplink/internal/model"
	"github.com/snaplink/snaplink/internal/repository"
)

// DefaultSessionTTL is how long a login session lasts.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SessionStore persists login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *model.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, *model.Principal, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SessionCache caches resolved sessions. A nil SessionCache disables caching.
type SessionCache interface {
	GetSession(ctx context.Context, tokenHash string) (*model.Principal, error)
	SetSession(ctx context.Context, tokenHash string, p *model.Principal, expiresAt time.Time) error
	DeleteSession(ctx context.Context, tokenHash string) error
}

// SessionService issues, resolves and revokes bearer sessions.
type SessionService struct {
	users    UserStore
	sessions SessionStore
	cache    SessionCache
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionService creates a SessionService. A non-positive ttl selects
// DefaultSessionTTL.
func NewSessionService(users UserStore, sessions SessionStore, sessionCache SessionCache, ttl time.Duration, logger *slog.Logger) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		users:    users,
		sessions: sessions,
		cache:    sessionCache,
		ttl:      ttl,
		logger:   logger.With("component", "session_service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// LoginResult is returned once per login. Token is never stored.
type LoginResult struct {
	Token   string
	Session *model.Session
	User    *model.User
}

// Login checks credentials and opens a session.
func (s *SessionService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("password_hash_unreadable", "user_id", user.ID, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	token, hash, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &model.Session{
		ID:        ulid.Make().String(),
		TokenHash: hash,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("user_logged_in", "user_id", user.ID, "session_id", session.ID)
	return &LoginResult{Token: token, Session: session, User: user}, nil
}

// Authenticate resolves a bearer token into the caller's principal.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*model.Principal, error) {
	if !auth.LooksLikeToken(token) {
		return nil, ErrUnauthorized
	}
	hash := auth.HashToken(token)

	if s.cache != nil {
		p, err := s.cache.GetSession(ctx, hash)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("session_cache_read_failed", "error", err)
		}
	}

	session, principal, err := s.sessions.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	if session.IsExpired(s.now()) {
		return nil, ErrUnauthorized
	}

	if s.cache != nil {
		if err := s.cache.SetSession(ctx, hash, principal, session.ExpiresAt); err != nil {
			s.logger.Warn("session_cache_write_failed", "error", err)
		}
	}
	return principal, nil
}

// Logout revokes the session behind token.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if !auth.LooksLikeToken(token) {
		return ErrUnauthorized
	}
	hash := auth.HashToken(token)

	if err := s.sessions.DeleteSessionByTokenHash(ctx, hash); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.DeleteSession(ctx, hash); err != nil {
			s.logger.Warn("session_cache_invalidate_failed", "error", err)
		}
	}
	return nil
}

// PurgeExpired deletes sessions past their expiry. It runs on the scheduler.
func (s *SessionService) PurgeExpired(ctx context.Context) error {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("sessions_purged", "count", n)
	}
	return nil
}
