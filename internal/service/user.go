package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/snaplink/snaplink/internal/auth"
	"github.com/snaplink/snaplink/internal/model"
	"github.com/snaplink/snaplink/internal/repository"
)

const maxNameLength = 100

// UserStore is the persistence the account services need.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, user *model.User) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	SoftDeleteUser(ctx context.Context, id string, deletedAt time.Time) (*model.AccountDeletion, error)
}

// LinkCounter counts a user's live links.
type LinkCounter interface {
	CountLinksByUser(ctx context.Context, userID string) (int64, error)
}

// UserService handles registration and account management.
type UserService struct {
	users        UserStore
	links        LinkCounter
	linkCache    LinkCache
	sessionCache SessionCache
	params       auth.Params
	logger       *slog.Logger
	now          func() time.Time
}

// NewUserService creates a UserService. Both caches may be nil.
func NewUserService(users UserStore, links LinkCounter, linkCache LinkCache, sessionCache SessionCache, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:        users,
		links:        links,
		linkCache:    linkCache,
		sessionCache: sessionCache,
		params:       auth.DefaultParams,
		logger:       logger.With("component", "user_service"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput defines input for creating an account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// Register creates a user with a hashed password.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	name, err := normalizeName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, invalid("password", err.Error())
	}

	hash, err := s.params.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user_registered", "user_id", user.ID)
	return user, nil
}

// Profile is a user together with their live link count.
type Profile struct {
	User      *model.User
	LinkCount int64
}

// GetProfile returns the caller's profile.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, err := s.links.CountLinksByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count links: %w", err)
	}
	return &Profile{User: user, LinkCount: count}, nil
}

// UpdateProfileInput holds optional profile changes.
type UpdateProfileInput struct {
	Name  *string
	Email *string
}

// UpdateProfile applies name and email changes. A new email must not
// belong to another account.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*model.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := normalizeName(*input.Name)
		if err != nil {
			return nil, err
		}
		user.Name = name
	}

	if input.Email != nil {
		email, err := normalizeEmail(*input.Email)
		if err != nil {
			return nil, err
		}
		if email != user.Email {
			existing, err := s.users.GetUserByEmail(ctx, email)
			switch {
			case err == nil && existing.ID != user.ID:
				return nil, ErrEmailTaken
			case err != nil && !errors.Is(err, repository.ErrUserNotFound):
				return nil, fmt.Errorf("failed to check email: %w", err)
			}
			user.Email = email
			user.EmailVerified = nil
		}
	}

	user.UpdatedAt = s.now()
	if err := s.users.UpdateUserProfile(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := auth.VerifyPassword(current, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return invalid("currentPassword", "current password is incorrect")
	}
	if err := auth.ValidatePassword(next); err != nil {
		return invalid("newPassword", err.Error())
	}

	hash, err := s.params.Hash(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdateUserPassword(ctx, userID, hash, s.now()); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// DeleteAccount soft-deletes the user and their links and revokes every
// session.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUnauthorized
	}

	removed, err := s.users.SoftDeleteUser(ctx, userID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if s.linkCache != nil {
		for _, code := range removed.LinkSlugs {
			if err := s.linkCache.DeleteLink(ctx, code); err != nil {
				s.logger.Warn("link_cache_invalidate_failed", "slug", code, "error", err)
			}
		}
	}
	if s.sessionCache != nil {
		for _, hash := range removed.SessionTokenHashes {
			if err := s.sessionCache.DeleteSession(ctx, hash); err != nil {
				s.logger.Warn("session_cache_invalidate_failed", "error", err)
			}
		}
	}

	s.logger.Info("user_deleted", "user_id", userID, "links", len(removed.LinkSlugs))
	return nil
}

func (s *UserService) getUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", "email is not valid")
	}
	return email, nil
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", invalid("name", "name is required")
	}
	if len(name) > maxNameLength {
		return "", invalid("name", fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	return name, nil
}
