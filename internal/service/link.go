package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/snaplink/snaplink/internal/cache"
	"github.com/snaplink/snaplink/internal/metrics"
	"github.com/snaplink/snaplink/internal/model"
	"github.com/snaplink/snaplink/internal/repository"
	"github.com/snaplink/snaplink/internal/slug"
)

const (
	maxSlugAttempts  = 5
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// LinkStore is the persistence the link service needs.
type LinkStore interface {
	CreateLink(ctx context.Context, link *model.Link) error
	GetLinkBySlug(ctx context.Context, slug string) (*model.Link, error)
	GetLiveLinkForRedirect(ctx context.Context, slug string) (*model.Link, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListLinksByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Link, error)
	CountLinksByUser(ctx context.Context, userID string) (int64, error)
	UpdateLinkURL(ctx context.Context, id, originalURL string, updatedAt time.Time) error
	SoftDeleteLink(ctx context.Context, id string, deletedAt time.Time) error
}

// LinkCache is the redirect cache. A nil LinkCache disables caching.
type LinkCache interface {
	GetLink(ctx context.Context, slug string) (*model.Link, error)
	SetLink(ctx context.Context, link *model.Link) error
	DeleteLink(ctx context.Context, slug string) error
	IsNegativelyCached(ctx context.Context, slug string) (bool, error)
	SetNegativeCache(ctx context.Context, slug string) error
}

// LinkService handles link business logic.
type LinkService struct {
	store   LinkStore
	cache   LinkCache
	baseURL string
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewLinkService creates a new LinkService. linkCache may be nil.
func NewLinkService(store LinkStore, linkCache LinkCache, baseURL string, recorder metrics.Recorder, logger *slog.Logger) *LinkService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkService{
		store:   store,
		cache:   linkCache,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		metrics: recorder,
		logger:  logger.With("component", "link_service"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateLinkInput defines input for creating a link.
type CreateLinkInput struct {
	URL        string
	CustomSlug string
	// UserID is empty for anonymous links.
	UserID string
}

// CreateLink validates the destination, picks a slug and stores the link.
func (s *LinkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if err := ValidateDestination(input.URL); err != nil {
		return nil, err
	}

	custom := strings.TrimSpace(input.CustomSlug)
	var (
		chosen string
		err    error
	)
	if custom != "" {
		chosen, err = s.claimCustomSlug(ctx, custom)
	} else {
		chosen, err = s.generateUniqueSlug(ctx)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	link := &model.Link{
		ID:          ulid.Make().String(),
		Slug:        chosen,
		OriginalURL: input.URL,
		CustomSlug:  custom != "",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.UserID != "" {
		owner := input.UserID
		link.UserID = &owner
	}

	if err := s.store.CreateLink(ctx, link); err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			return nil, ErrSlugConflict
		}
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	s.metrics.IncLinkCreated()
	// A redirect may have negatively cached this slug before it existed.
	s.invalidate(ctx, link.Slug)

	return link, nil
}

func (s *LinkService) claimCustomSlug(ctx context.Context, custom string) (string, error) {
	chosen, err := slug.Resolve(custom)
	if err != nil {
		return "", invalidSlug()
	}
	exists, err := s.store.SlugExists(ctx, chosen)
	if err != nil {
		return "", fmt.Errorf("failed to check slug: %w", err)
	}
	if exists {
		return "", ErrSlugConflict
	}
	return chosen, nil
}

func (s *LinkService) generateUniqueSlug(ctx context.Context) (string, error) {
	for i := 0; i < maxSlugAttempts; i++ {
		candidate, err := slug.Resolve("")
		if err != nil {
			return "", fmt.Errorf("failed to generate slug: %w", err)
		}
		exists, err := s.store.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", ErrSlugExhausted
}

// ResolveRedirect resolves a slug for the redirect hot path.
// Cache errors fall through to the database.
func (s *LinkService) ResolveRedirect(ctx context.Context, code string) (*model.Link, bool, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRedirectDuration(time.Since(start))
	}()

	if s.cache != nil {
		cached, err := s.cache.GetLink(ctx, code)
		switch {
		case err == nil:
			s.metrics.IncRedirectCacheHit()
			return cached, true, nil
		case errors.Is(err, cache.ErrCacheMiss):
			s.metrics.IncRedirectCacheMiss()
			negative, negErr := s.cache.IsNegativelyCached(ctx, code)
			if negErr != nil {
				s.logger.Warn("negative_cache_check_failed", "slug", code, "error", negErr)
			} else if negative {
				return nil, false, ErrLinkNotFound
			}
		default:
			s.metrics.IncRedirectCacheMiss()
			s.logger.Warn("link_cache_read_failed", "slug", code, "error", err)
		}
	}

	link, err := s.store.GetLiveLinkForRedirect(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			if s.cache != nil {
				if cerr := s.cache.SetNegativeCache(ctx, code); cerr != nil {
					s.logger.Warn("negative_cache_write_failed", "slug", code, "error", cerr)
				}
			}
			return nil, false, ErrLinkNotFound
		}
		return nil, false, fmt.Errorf("failed to resolve link: %w", err)
	}

	if s.cache != nil {
		if cerr := s.cache.SetLink(ctx, link); cerr != nil {
			s.logger.Warn("link_cache_write_failed", "slug", code, "error", cerr)
		}
	}

	return link, false, nil
}

// GetLink returns a live link if viewerID may see it.
func (s *LinkService) GetLink(ctx context.Context, viewerID, code string) (*model.Link, error) {
	link, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(link, viewerID); err != nil {
		return nil, err
	}
	return link, nil
}

// ListLinksInput defines input for listing a user's links.
type ListLinksInput struct {
	UserID string
	Page   int
	Limit  int
}

// LinkPage is one page of a user's links.
type LinkPage struct {
	Links []*model.Link
	Total int64
	Page  int
	Pages int
}

// ListLinks returns the caller's live links, newest first.
func (s *LinkService) ListLinks(ctx context.Context, input ListLinksInput) (*LinkPage, error) {
	if input.UserID == "" {
		return nil, ErrUnauthorized
	}
	page, limit := NormalizePage(input.Page, input.Limit)

	total, err := s.store.CountLinksByUser(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count links: %w", err)
	}
	pages := int((total + int64(limit) - 1) / int64(limit))

	// Past the last page there is nothing to fetch, and (page-1)*limit could
	// overflow into a negative offset.
	if page > pages {
		return &LinkPage{Links: []*model.Link{}, Total: total, Page: page, Pages: pages}, nil
	}

	links, err := s.store.ListLinksByUser(ctx, input.UserID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	return &LinkPage{Links: links, Total: total, Page: page, Pages: pages}, nil
}

// NormalizePage clamps pagination parameters: page starts at 1 and limit
// defaults to 10 with a maximum of 100.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

// UpdateLinkInput defines input for changing a link's destination.
type UpdateLinkInput struct {
	UserID string
	Slug   string
	URL    string
}

// UpdateLink changes the destination of a link owned by the caller.
func (s *LinkService) UpdateLink(ctx context.Context, input UpdateLinkInput) (*model.Link, error) {
	if input.UserID == "" {
		return nil, ErrUnauthorized
	}
	if err := ValidateDestination(input.URL); err != nil {
		return nil, err
	}

	link, err := s.lookup(ctx, input.Slug)
	if err != nil {
		return nil, err
	}
	if !link.OwnedBy(input.UserID) {
		return nil, ErrForbidden
	}

	now := s.now()
	if err := s.store.UpdateLinkURL(ctx, link.ID, input.URL, now); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to update link: %w", err)
	}
	link.OriginalURL = input.URL
	link.UpdatedAt = now

	s.metrics.IncLinkUpdated()
	s.invalidate(ctx, link.Slug)

	return link, nil
}

// DeleteLink soft-deletes a link owned by the caller.
func (s *LinkService) DeleteLink(ctx context.Context, userID, code string) error {
	if userID == "" {
		return ErrUnauthorized
	}

	link, err := s.lookup(ctx, code)
	if err != nil {
		return err
	}
	if !link.OwnedBy(userID) {
		return ErrForbidden
	}

	if err := s.store.SoftDeleteLink(ctx, link.ID, s.now()); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return ErrLinkNotFound
		}
		return fmt.Errorf("failed to delete link: %w", err)
	}

	s.metrics.IncLinkDeleted()
	s.invalidate(ctx, link.Slug)

	return nil
}

// ShortURL returns the public short URL for a slug.
func (s *LinkService) ShortURL(code string) string {
	return s.baseURL + "/" + code
}

// BaseURL returns the configured base URL.
func (s *LinkService) BaseURL() string {
	return s.baseURL
}

func (s *LinkService) lookup(ctx context.Context, code string) (*model.Link, error) {
	if !slug.LooksLikeSlug(code) {
		return nil, ErrLinkNotFound
	}
	link, err := s.store.GetLinkBySlug(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

func (s *LinkService) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteLink(ctx, code); err != nil {
		s.logger.Warn("link_cache_invalidate_failed", "slug", code, "error", err)
	}
}

// authorizeView applies the read rules: unowned links are public, owned
// links need their owner's session.
func authorizeView(link *model.Link, viewerID string) error {
	if !link.IsOwned() {
		return nil
	}
	if viewerID == "" {
		return ErrUnauthorized
	}
	if !link.OwnedBy(viewerID) {
		return ErrForbidden
	}
	return nil
}

// ValidateDestination checks that raw is an absolute http(s) URL that fits
// in a link.
func ValidateDestination(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return invalid("url", "url is required")
	}
	if len(raw) > model.MaxURLLength {
		return invalid("url", fmt.Sprintf("url must be at most %d characters", model.MaxURLLength))
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return invalid("url", "url is not valid")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return invalid("url", "url must use http or https")
	}
	if parsed.Host == "" {
		return invalid("url", "url must be absolute")
	}
	return nil
}

func invalidSlug() error {
	return fmt.Errorf("%w: must be %d-%d characters of a-z, 0-9 or '-' and not reserved",
		slug.ErrInvalidSlug, slug.MinLength, slug.MaxLength)
}
