package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/snaplink/snaplink/internal/analytics"
	"github.com/snaplink/snaplink/internal/cache"
	"github.com/snaplink/snaplink/internal/model"
	"github.com/snaplink/snaplink/internal/repository"
)

// MemoryStore is an in-memory stand-in for the Postgres repository. It
// enforces the same uniqueness rules and returns the same sentinel errors.
type MemoryStore struct {
	mu       sync.Mutex
	links    map[string]*model.Link // by slug, live and deleted
	clicks   []model.ClickEvent
	nextID   int64
	users    map[string]*model.User // by id
	sessions map[string]*model.Session

	clickErr        error
	redirectLookups int
	clickQueries    []model.ClickQuery
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links:    make(map[string]*model.Link),
		users:    make(map[string]*model.User),
		sessions: make(map[string]*model.Session),
	}
}

// FailClicks makes InsertClick return err until called again with nil.
func (s *MemoryStore) FailClicks(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clickErr = err
}

// Clicks returns a copy of every recorded click.
func (s *MemoryStore) Clicks() []model.ClickEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ClickEvent(nil), s.clicks...)
}

// ---- links ----

func (s *MemoryStore) CreateLink(ctx context.Context, link *model.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.Slug]; ok {
		return repository.ErrSlugExists
	}
	cp := *link
	s.links[link.Slug] = &cp
	return nil
}

func (s *MemoryStore) GetLinkBySlug(ctx context.Context, slug string) (*model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[slug]
	if !ok || link.IsDeleted() {
		return nil, repository.ErrLinkNotFound
	}
	return s.withClicks(link), nil
}

// GetLiveLinkForRedirect returns the link without a click count, like the
// Postgres redirect query.
func (s *MemoryStore) GetLiveLinkForRedirect(ctx context.Context, slug string) (*model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirectLookups++
	link, ok := s.links[slug]
	if !ok || link.IsDeleted() {
		return nil, repository.ErrLinkNotFound
	}
	cp := *link
	cp.ClickCount = 0
	return &cp, nil
}

// RedirectLookups counts GetLiveLinkForRedirect calls.
func (s *MemoryStore) RedirectLookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redirectLookups
}

func (s *MemoryStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.links[slug]
	return ok, nil
}

func (s *MemoryStore) ListLinksByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Link, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("negative limit %d or offset %d", limit, offset)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var owned []*model.Link
	for _, link := range s.links {
		if link.OwnedBy(userID) && !link.IsDeleted() {
			owned = append(owned, s.withClicks(link))
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	if offset >= len(owned) {
		return []*model.Link{}, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], nil
}

func (s *MemoryStore) CountLinksByUser(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, link := range s.links {
		if link.OwnedBy(userID) && !link.IsDeleted() {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UpdateLinkURL(ctx context.Context, id, originalURL string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link := s.linkByID(id)
	if link == nil {
		return repository.ErrLinkNotFound
	}
	link.OriginalURL = originalURL
	link.UpdatedAt = updatedAt
	return nil
}

func (s *MemoryStore) SoftDeleteLink(ctx context.Context, id string, deletedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link := s.linkByID(id)
	if link == nil {
		return repository.ErrLinkNotFound
	}
	at := deletedAt
	link.DeletedAt = &at
	link.UpdatedAt = deletedAt
	return nil
}

func (s *MemoryStore) linkByID(id string) *model.Link {
	for _, link := range s.links {
		if link.ID == id && !link.IsDeleted() {
			return link
		}
	}
	return nil
}

func (s *MemoryStore) withClicks(link *model.Link) *model.Link {
	cp := *link
	cp.ClickCount = 0
	for _, c := range s.clicks {
		if c.LinkID == link.ID {
			cp.ClickCount++
		}
	}
	return &cp
}

// ---- clicks ----

func (s *MemoryStore) InsertClick(ctx context.Context, event *model.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clickErr != nil {
		return s.clickErr
	}
	s.nextID++
	event.ID = s.nextID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.clicks = append(s.clicks, *event)
	return nil
}

// SummarizeClicks aggregates in memory with the same rules as the SQL version.
func (s *MemoryStore) SummarizeClicks(ctx context.Context, q model.ClickQuery) (*model.ClickSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clickQueries = append(s.clickQueries, q)
	return analytics.Summarize(s.clicks, q), nil
}

// ClickQueries returns every query SummarizeClicks has seen.
func (s *MemoryStore) ClickQueries() []model.ClickQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ClickQuery(nil), s.clickQueries...)
}

// AddClick stores a click as-is, for seeding analytics tests.
func (s *MemoryStore) AddClick(event model.ClickEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	event.ID = s.nextID
	s.clicks = append(s.clicks, event)
}

// ---- users ----

func (s *MemoryStore) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *MemoryStore) UpdateUserProfile(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[user.ID]
	if !ok || u.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	for _, other := range s.users {
		if other.ID != user.ID && other.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	u.Name = user.Name
	u.Email = user.Email
	u.EmailVerified = user.EmailVerified
	u.UpdatedAt = user.UpdatedAt
	return nil
}

func (s *MemoryStore) UpdateUserPassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = updatedAt
	return nil
}

func (s *MemoryStore) SoftDeleteUser(ctx context.Context, id string, deletedAt time.Time) (*model.AccountDeletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, repository.ErrUserNotFound
	}
	at := deletedAt
	u.DeletedAt = &at

	var removed model.AccountDeletion
	for _, link := range s.links {
		if link.OwnedBy(id) && !link.IsDeleted() {
			link.DeletedAt = &at
			removed.LinkSlugs = append(removed.LinkSlugs, link.Slug)
		}
	}
	for hash, sess := range s.sessions {
		if sess.UserID == id {
			delete(s.sessions, hash)
			removed.SessionTokenHashes = append(removed.SessionTokenHashes, hash)
		}
	}
	return &removed, nil
}

// ---- sessions ----

func (s *MemoryStore) CreateSession(ctx context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.TokenHash] = &cp
	return nil
}

func (s *MemoryStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, *model.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, nil, repository.ErrSessionNotFound
	}
	u, ok := s.users[sess.UserID]
	if !ok || u.DeletedAt != nil {
		return nil, nil, repository.ErrSessionNotFound
	}
	cp := *sess
	return &cp, &model.Principal{UserID: u.ID, SessionID: sess.ID, Email: u.Email}, nil
}

func (s *MemoryStore) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *MemoryStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for hash, sess := range s.sessions {
		if sess.IsExpired(now) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

// SessionCount returns the number of stored sessions.
func (s *MemoryStore) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// MemoryCache is an in-memory stand-in for the Redis cache.
type MemoryCache struct {
	mu       sync.Mutex
	links    map[string]model.Link
	negative map[string]bool
	sessions map[string]cachedPrincipal
	err      error
}

type cachedPrincipal struct {
	principal model.Principal
	expiresAt time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		links:    make(map[string]model.Link),
		negative: make(map[string]bool),
		sessions: make(map[string]cachedPrincipal),
	}
}

// Fail makes every operation return err until called again with nil.
func (c *MemoryCache) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// HasLink reports whether slug is positively cached.
func (c *MemoryCache) HasLink(slug string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.links[slug]
	return ok
}

func (c *MemoryCache) GetLink(ctx context.Context, slug string) (*model.Link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	link, ok := c.links[slug]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &link, nil
}

func (c *MemoryCache) SetLink(ctx context.Context, link *model.Link) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.links[link.Slug] = *link
	delete(c.negative, link.Slug)
	return nil
}

func (c *MemoryCache) DeleteLink(ctx context.Context, slug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.links, slug)
	delete(c.negative, slug)
	return nil
}

func (c *MemoryCache) IsNegativelyCached(ctx context.Context, slug string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	return c.negative[slug], nil
}

func (c *MemoryCache) SetNegativeCache(ctx context.Context, slug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.negative[slug] = true
	return nil
}

func (c *MemoryCache) GetSession(ctx context.Context, tokenHash string) (*model.Principal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	entry, ok := c.sessions[tokenHash]
	if !ok || !time.Now().Before(entry.expiresAt) {
		return nil, cache.ErrCacheMiss
	}
	p := entry.principal
	return &p, nil
}

func (c *MemoryCache) SetSession(ctx context.Context, tokenHash string, p *model.Principal, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sessions[tokenHash] = cachedPrincipal{principal: *p, expiresAt: expiresAt}
	return nil
}

func (c *MemoryCache) DeleteSession(ctx context.Context, tokenHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.sessions, tokenHash)
	return nil
}
