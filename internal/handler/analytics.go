package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snaplink/snaplink/internal/auth"
	"github.com/snaplink/snaplink/internal/service"
)

// DefaultAnalyticsPeriod is used when no period is given.
const DefaultAnalyticsPeriod = "day"

// AnalyticsHandler serves per-link click reports.
type AnalyticsHandler struct {
	responder
	svc *service.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(svc *service.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		responder: newResponder(logger, nil),
		svc:       svc,
	}
}

// Report handles GET /api/links/{slug}/analytics?period=.
func (h *AnalyticsHandler) Report(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = DefaultAnalyticsPeriod
	}

	report, err := h.svc.Report(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "slug"), period)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
