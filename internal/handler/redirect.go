package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snaplink/snaplink/internal/analytics"
	"github.com/snaplink/snaplink/internal/handler/dto"
	"github.com/snaplink/snaplink/internal/model"
	"github.com/snaplink/snaplink/internal/service"
	"github.com/snaplink/snaplink/internal/slug"
)

// Resolver looks up the destination for a slug.
type Resolver interface {
	ResolveRedirect(ctx context.Context, code string) (*model.Link, bool, error)
}

// ClickRecorder accepts clicks without blocking the caller.
type ClickRecorder interface {
	Record(linkID string, meta analytics.Metadata) bool
}

// RedirectHandler handles redirect requests.
type RedirectHandler struct {
	resolver Resolver
	clicks   ClickRecorder
	logger   *slog.Logger
}

// NewRedirectHandler creates a new RedirectHandler. clicks may be nil, in
// which case no clicks are recorded.
func NewRedirectHandler(resolver Resolver, clicks ClickRecorder, logger *slog.Logger) *RedirectHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedirectHandler{
		resolver: resolver,
		clicks:   clicks,
		logger:   logger.With("component", "redirect"),
	}
}

// Redirect handles GET /{slug}. The click is handed to the recorder and the
// 301 is written without waiting for it to be stored.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "slug")
	if !slug.LooksLikeSlug(code) {
		h.writeError(w, http.StatusBadRequest, "Invalid slug")
		return
	}

	start := time.Now()
	link, cacheHit, err := h.resolver.ResolveRedirect(r.Context(), code)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			h.logger.Info("redirect_not_found",
				"slug", code,
				"duration_ms", float64(duration.Microseconds())/1000,
			)
			h.writeError(w, http.StatusNotFound, "Link not found")
			return
		}
		h.logger.Error("redirect_error",
			"slug", code,
			"error", err,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.clicks != nil {
		h.clicks.Record(link.ID, analytics.ExtractMetadata(r))
	}

	h.logger.Info("redirect_success",
		"slug", code,
		"cache_hit", cacheHit,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	w.Header().Set("Cache-Control", "private, max-age=0")
	http.Redirect(w, r, link.OriginalURL, http.StatusMovedPermanently)
}

// writeError writes the redirect error body, which carries no code.
func (h *RedirectHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Cache-Control", "private, max-age=0")
	writeJSON(w, status, dto.ErrorResponse{Error: message})
}
