// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/snaplink/snaplink/internal/analytics"
	"github.com/snaplink/snaplink/internal/handler/dto"
	"github.com/snaplink/snaplink/internal/middleware"
	"github.com/snaplink/snaplink/internal/service"
	"github.com/snaplink/snaplink/internal/slug"
)

// Handler serves the router-level fallbacks.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// responder carries what every API handler needs to decode requests and
// report errors.
type responder struct {
	logger    *slog.Logger
	validator *dto.Validator
}

func newResponder(logger *slog.Logger, v *dto.Validator) responder {
	if logger == nil {
		logger = slog.Default()
	}
	if v == nil {
		v = dto.NewValidator()
	}
	return responder{logger: logger, validator: v}
}

// decode reads a JSON body into dst and validates it. It writes the error
// response and returns false when the request is unusable.
func (rs responder) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}

	if err := rs.validator.Validate(dst); err != nil {
		var fe *dto.FieldError
		if errors.As(err, &fe) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error: fe.Message,
				Code:  "INVALID_INPUT",
				Field: fe.Field,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request")
		return false
	}
	return true
}

// writeServiceError maps service errors to HTTP responses. Anything not
// recognised is logged and reported as a generic 500.
func (rs responder) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: verr.Message,
			Code:  "INVALID_INPUT",
			Field: verr.Field,
		})
	case errors.Is(err, slug.ErrInvalidSlug):
		writeError(w, http.StatusBadRequest, "INVALID_SLUG", "Invalid slug")
	case errors.Is(err, analytics.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid period")
	case errors.Is(err, service.ErrSlugConflict):
		writeError(w, http.StatusConflict, "CONFLICT", "Slug already taken")
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, "CONFLICT", "Email already registered")
	case errors.Is(err, service.ErrLinkNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Link not found")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password")
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Access denied")
	default:
		rs.logger.Error("internal_error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}
