// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/snaplink/snaplink/internal/model"
)

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	URL        string `json:"url" validate:"required,max=2048,url"`
	CustomSlug string `json:"customSlug,omitempty" validate:"omitempty,min=3,max=20"`
}

// UpdateLinkRequest represents the request body for updating a link.
type UpdateLinkRequest struct {
	URL string `json:"url" validate:"required,max=2048,url"`
}

// CreateLinkResponse is returned after a link is created.
type CreateLinkResponse struct {
	Slug      string    `json:"slug"`
	ShortURL  string    `json:"shortUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// LinkResponse represents a link in API responses.
type LinkResponse struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	ShortURL    string    `json:"shortUrl"`
	OriginalURL string    `json:"originalUrl"`
	CustomSlug  bool      `json:"customSlug"`
	ClickCount  int64     `json:"clickCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LinkListResponse is one page of the caller's links.
type LinkListResponse struct {
	Data  []LinkResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// RateLimitResponse is the body of a 429.
type RateLimitResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	ResetTime time.Time `json:"resetTime"`
}

// ToLinkResponse converts a Link model to LinkResponse DTO.
func ToLinkResponse(link *model.Link, baseURL string) LinkResponse {
	return LinkResponse{
		ID:          link.ID,
		Slug:        link.Slug,
		ShortURL:    baseURL + "/" + link.Slug,
		OriginalURL: link.OriginalURL,
		CustomSlug:  link.CustomSlug,
		ClickCount:  link.ClickCount,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}
