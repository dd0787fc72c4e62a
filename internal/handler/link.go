package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/snaplink/snaplink/internal/auth"
	"github.com/snaplink/snaplink/internal/handler/dto"
	"github.com/snaplink/snaplink/internal/service"
)

// LinkHandler handles HTTP requests for link operations.
type LinkHandler struct {
	responder
	svc *service.LinkService
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(svc *service.LinkService, v *dto.Validator, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{
		responder: newResponder(logger, v),
		svc:       svc,
	}
}

// Create handles POST /api/links. Anonymous callers create unowned links.
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLinkRequest
	if !h.decode(w, r, &req) {
		return
	}

	link, err := h.svc.CreateLink(r.Context(), service.CreateLinkInput{
		URL:        req.URL,
		CustomSlug: req.CustomSlug,
		UserID:     auth.UserIDFromContext(r.Context()),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.CreateLinkResponse{
		Slug:      link.Slug,
		ShortURL:  h.svc.ShortURL(link.Slug),
		CreatedAt: link.CreatedAt,
	})
}

// List handles GET /api/links?page=&limit= for the caller's own links.
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	result, err := h.svc.ListLinks(r.Context(), service.ListLinksInput{
		UserID: auth.UserIDFromContext(r.Context()),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	data := make([]dto.LinkResponse, 0, len(result.Links))
	for _, link := range result.Links {
		data = append(data, dto.ToLinkResponse(link, h.svc.BaseURL()))
	}

	writeJSON(w, http.StatusOK, dto.LinkListResponse{
		Data:  data,
		Total: result.Total,
		Page:  result.Page,
		Pages: result.Pages,
	})
}

// Get handles GET /api/links/{slug}.
func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, err := h.svc.GetLink(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToLinkResponse(link, h.svc.BaseURL()))
}

// Update handles PATCH /api/links/{slug}.
func (h *LinkHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateLinkRequest
	if !h.decode(w, r, &req) {
		return
	}

	link, err := h.svc.UpdateLink(r.Context(), service.UpdateLinkInput{
		UserID: auth.UserIDFromContext(r.Context()),
		Slug:   chi.URLParam(r, "slug"),
		URL:    req.URL,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToLinkResponse(link, h.svc.BaseURL()))
}

// Delete handles DELETE /api/links/{slug}.
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteLink(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "slug")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
