package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/snaplink/snaplink/internal/metrics"
	"github.com/snaplink/snaplink/internal/model"
	"github.com/snaplink/snaplink/internal/slug"
	"github.com/snaplink/snaplink/internal/testutil"
)

func newLinkService(t *testing.T) (*LinkService, *testutil.MemoryStore, *testutil.MemoryCache) {
	t.Helper()
	store := testutil.NewMemoryStore()
	c := testutil.NewMemoryCache()
	return NewLinkService(store, c, "https://sl.test/", metrics.NewNoop(), testutil.DiscardLogger()), store, c
}

func TestValidateDestination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid https", "https://example.com/path?q=1", false},
		{"valid http", "http://example.com", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"relative", "/just/a/path", true},
		{"ftp scheme", "ftp://example.com/file", true},
		{"javascript", "javascript:alert(1)", true},
		{"missing host", "https://", true},
		{"too long", "https://example.com/" + strings.Repeat("a", 2048), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateDestination(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateDestination(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil {
				var verr *ValidationError
				if !errors.As(err, &verr) || verr.Field != "url" {
					t.Errorf("expected url ValidationError, got %v", err)
				}
			}
		})
	}
}

func TestCreateLink_GeneratedSlug(t *testing.T) {
	t.Parallel()

	svc, _, _ := newLinkService(t)
	link, err := svc.CreateLink(context.Background(), CreateLinkInput{URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if len(link.Slug) != slug.DefaultLength || !slug.IsValid(link.Slug) {
		t.Errorf("generated slug %q is not a valid default-length slug", link.Slug)
	}
	if link.CustomSlug {
		t.Error("generated slug should not be flagged custom")
	}
	if link.IsOwned() {
		t.Error("anonymous link should not be owned")
	}
	if got := svc.ShortURL(link.Slug); got != "https://sl.test/"+link.Slug {
		t.Errorf("ShortURL = %q", got)
	}
}

func TestCreateLink_CustomSlug(t *testing.T) {
	t.Parallel()

	svc, _, _ := newLinkService(t)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://example.com", CustomSlug: "my-link", UserID: "u1"})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if link.Slug != "my-link" || !link.CustomSlug || !link.OwnedBy("u1") {
		t.Errorf("link = %+v", link)
	}

	if _, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://other.example", CustomSlug: "my-link"}); !errors.Is(err, ErrSlugConflict) {
		t.Errorf("duplicate custom slug error = %v, want ErrSlugConflict", err)
	}

	for _, bad := range []string{"admin", "ab", "Has_Caps", strings.Repeat("a", 21)} {
		if _, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://example.com", CustomSlug: bad}); !errors.Is(err, slug.ErrInvalidSlug) {
			t.Errorf("CustomSlug %q error = %v, want ErrInvalidSlug", bad, err)
		}
	}
}

func TestCreateLink_DeletedSlugStaysTaken(t *testing.T) {
	t.Parallel()

	svc, _, _ := newLinkService(t)
	ctx := context.Background()

	if _, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://example.com", CustomSlug: "gone", UserID: "u1"}); err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if err := svc.DeleteLink(ctx, "u1", "gone"); err != nil {
		t.Fatalf("DeleteLink() error = %v", err)
	}
	if _, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://example.com", CustomSlug: "gone"}); !errors.Is(err, ErrSlugConflict) {
		t.Errorf("reusing deleted slug error = %v, want ErrSlugConflict", err)
	}
}

func TestCreateLink_ConcurrentSameSlug(t *testing.T) {
	t.Parallel()

	svc, _, _ := newLinkService(t)
	const racers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateLink(context.Background(), CreateLinkInput{URL: "https://example.com", CustomSlug: "race"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlugConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != racers-1 {
		t.Errorf("successes=%d conflicts=%d, want 1/%d", successes, conflicts, racers-1)
	}
}

func TestResolveRedirect_CachePopulation(t *testing.T) {
	t.Parallel()

	svc, _, c := newLinkService(t)
	ctx := context.Background()

	created, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://example.com/dest"})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}

	link, hit, err := svc.ResolveRedirect(ctx, created.Slug)
	if err != nil || hit {
		t.Fatalf("first resolve: hit=%v err=%v", hit, err)
	}
	if link.OriginalURL != "https://example.com/dest" {
		t.Errorf("OriginalURL = %q", link.OriginalURL)
	}
	if !c.HasLink(created.Slug) {
		t.Error("resolve should populate the cache")
	}

	link, hit, err = svc.ResolveRedirect(ctx, created.Slug)
	if err != nil || !hit {
		t.Fatalf("second resolve: hit=%v err=%v", hit, err)
	}
	if link.ID != created.ID {
		t.Errorf("cached link id = %q, want %q", link.ID, created.ID)
	}
}

func TestResolveRedirect_NegativeCache(t *testing.T) {
	t.Parallel()

	svc, _, c := newLinkService(t)
	ctx := context.Background()

	if _, _, err := svc.ResolveRedirect(ctx, "nope"); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("error = %v, want ErrLinkNotFound", err)
	}
	if neg, _ := c.IsNegativelyCached(ctx, "nope"); !neg {
		t.Error("missing slug should be negatively cached")
	}

	// Creating the slug clears the negative entry.
	if _, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://example.com", CustomSlug: "nope"}); err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if _, _, err := svc.ResolveRedirect(ctx, "nope"); err != nil {
		t.Errorf("resolve after create error = %v", err)
	}
}

func TestResolveRedirect_CacheOutageFallsThrough(t *testing.T) {
	t.Parallel()

	svc, _, c := newLinkService(t)
	ctx := context.Background()

	created, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	c.Fail(errors.New("redis down"))

	link, hit, err := svc.ResolveRedirect(ctx, created.Slug)
	if err != nil || hit {
		t.Fatalf("resolve during outage: hit=%v err=%v", hit, err)
	}
	if link.ID != created.ID {
		t.Error("wrong link")
	}
}

func TestResolveRedirect_WithoutCache(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryStore()
	svc := NewLinkService(store, nil, "https://sl.test", nil, nil)
	ctx := context.Background()

	created, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if _, hit, err := svc.ResolveRedirect(ctx, created.Slug); err != nil || hit {
		t.Errorf("hit=%v err=%v", hit, err)
	}
	if _, _, err := svc.ResolveRedirect(ctx, "missing"); !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("error = %v", err)
	}
}

func TestGetLink_Ownership(t *testing.T) {
	t.Parallel()

	svc, store, _ := newLinkService(t)
	ctx := context.Background()

	_ = store.CreateLink(ctx, testutil.NewTestLink(t, "public", ""))
	_ = store.CreateLink(ctx, testutil.NewTestLink(t, "private", "owner"))

	tests := []struct {
		name    string
		viewer  string
		slug    string
		wantErr error
	}{
		{"anonymous link, no session", "", "public", nil},
		{"anonymous link, any user", "someone", "public", nil},
		{"owned link, no session", "", "private", ErrUnauthorized},
		{"owned link, other user", "intruder", "private", ErrForbidden},
		{"owned link, owner", "owner", "private", nil},
		{"missing", "owner", "missing", ErrLinkNotFound},
		{"malformed", "owner", "Not A Slug", ErrLinkNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.GetLink(ctx, tt.viewer, tt.slug)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetLink() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateLink(t *testing.T) {
	t.Parallel()

	svc, store, c := newLinkService(t)
	ctx := context.Background()

	_ = store.CreateLink(ctx, testutil.NewTestLink(t, "mine", "owner"))
	_ = store.CreateLink(ctx, testutil.NewTestLink(t, "anon", ""))
	if _, _, err := svc.ResolveRedirect(ctx, "mine"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	if _, err := svc.UpdateLink(ctx, UpdateLinkInput{Slug: "mine", URL: "https://new.example"}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("no session error = %v", err)
	}
	if _, err := svc.UpdateLink(ctx, UpdateLinkInput{UserID: "other", Slug: "mine", URL: "https://new.example"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("other user error = %v", err)
	}
	if _, err := svc.UpdateLink(ctx, UpdateLinkInput{UserID: "owner", Slug: "anon", URL: "https://new.example"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("unowned link error = %v", err)
	}
	var verr *ValidationError
	if _, err := svc.UpdateLink(ctx, UpdateLinkInput{UserID: "owner", Slug: "mine", URL: "nope"}); !errors.As(err, &verr) {
		t.Errorf("invalid url error = %v", err)
	}

	updated, err := svc.UpdateLink(ctx, UpdateLinkInput{UserID: "owner", Slug: "mine", URL: "https://new.example"})
	if err != nil {
		t.Fatalf("UpdateLink() error = %v", err)
	}
	if updated.OriginalURL != "https://new.example" {
		t.Errorf("OriginalURL = %q", updated.OriginalURL)
	}
	if c.HasLink("mine") {
		t.Error("update should invalidate the cache")
	}
	link, _, _ := svc.ResolveRedirect(ctx, "mine")
	if link.OriginalURL != "https://new.example" {
		t.Errorf("redirect target = %q after update", link.OriginalURL)
	}
}

func TestDeleteLink(t *testing.T) {
	t.Parallel()

	svc, store, c := newLinkService(t)
	ctx := context.Background()

	_ = store.CreateLink(ctx, testutil.NewTestLink(t, "bye", "owner"))
	if _, _, err := svc.ResolveRedirect(ctx, "bye"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	if err := svc.DeleteLink(ctx, "", "bye"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("no session error = %v", err)
	}
	if err := svc.DeleteLink(ctx, "other", "bye"); !errors.Is(err, ErrForbidden) {
		t.Errorf("other user error = %v", err)
	}
	if err := svc.DeleteLink(ctx, "owner", "bye"); err != nil {
		t.Fatalf("DeleteLink() error = %v", err)
	}
	if c.HasLink("bye") {
		t.Error("delete should invalidate the cache")
	}
	if _, _, err := svc.ResolveRedirect(ctx, "bye"); !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("redirect after delete error = %v", err)
	}
	if err := svc.DeleteLink(ctx, "owner", "bye"); !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("second delete error = %v", err)
	}
}

func TestListLinks_Pagination(t *testing.T) {
	t.Parallel()

	svc, _, _ := newLinkService(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if _, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://example.com", UserID: "u1"}); err != nil {
			t.Fatalf("CreateLink() error = %v", err)
		}
	}
	if _, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://example.com", UserID: "u2"}); err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}

	page, err := svc.ListLinks(ctx, ListLinksInput{UserID: "u1", Page: 3})
	if err != nil {
		t.Fatalf("ListLinks() error = %v", err)
	}
	if page.Total != 25 || page.Pages != 3 || page.Page != 3 || len(page.Links) != 5 {
		t.Errorf("page = total %d pages %d page %d len %d", page.Total, page.Pages, page.Page, len(page.Links))
	}

	if _, err := svc.ListLinks(ctx, ListLinksInput{}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("anonymous list error = %v", err)
	}
}

func TestNormalizePage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, 10},
		{-3, 5, 1, 5},
		{2, 500, 2, 100},
		{4, 100, 4, 100},
	}
	for _, tt := range tests {
		p, l := NormalizePage(tt.page, tt.limit)
		if p != tt.wantPage || l != tt.wantLimit {
			t.Errorf("NormalizePage(%d, %d) = %d, %d", tt.page, tt.limit, p, l)
		}
	}
}

func TestListLinks_PagePastEnd(t *testing.T) {
	t.Parallel()

	svc, _, _ := newLinkService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://example.com", UserID: "owner"}); err != nil {
			t.Fatalf("CreateLink() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		userID string
		page   int
		limit  int
	}{
		{"one past the end", "owner", 2, 10},
		{"far past the end", "owner", 1 << 40, 10},
		{"offset would overflow", "owner", math.MaxInt, 100},
		{"no links at all", "nobody", 1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListLinks(ctx, ListLinksInput{UserID: tt.userID, Page: tt.page, Limit: tt.limit})
			if err != nil {
				t.Fatalf("ListLinks() error = %v", err)
			}
			if len(page.Links) != 0 || page.Page != tt.page {
				t.Errorf("page = %d with %d links", page.Page, len(page.Links))
			}
		})
	}
}

func TestResolveRedirect_SkipsClickCount(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryStore()
	svc := NewLinkService(store, nil, "https://sl.test", nil, nil)
	ctx := context.Background()

	created, err := svc.CreateLink(ctx, CreateLinkInput{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		store.AddClick(model.ClickEvent{LinkID: created.ID, IPHash: "h", CreatedAt: time.Now()})
	}

	link, _, err := svc.ResolveRedirect(ctx, created.Slug)
	if err != nil {
		t.Fatalf("ResolveRedirect() error = %v", err)
	}
	if link.ClickCount != 0 {
		t.Errorf("ClickCount = %d, redirect lookup should not count clicks", link.ClickCount)
	}
	if got := store.RedirectLookups(); got != 1 {
		t.Errorf("RedirectLookups = %d, want 1", got)
	}

	// Reads outside the redirect path still carry the count.
	detail, err := svc.GetLink(ctx, "", created.Slug)
	if err != nil {
		t.Fatalf("GetLink() error = %v", err)
	}
	if detail.ClickCount != 3 {
		t.Errorf("GetLink ClickCount = %d, want 3", detail.ClickCount)
	}
}
