package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/snaplink/snaplink/internal/model"
)

const linkColumns = `
	l.id, l.slug, l.original_url, l.user_id, l.custom_slug,
	(SELECT COUNT(*) FROM clicks c WHERE c.link_id = l.id) AS click_count,
	l.created_at, l.updated_at, l.deleted_at`

// redirectColumns leaves out click_count so a redirect never scans clicks.
const redirectColumns = `
	l.id, l.slug, l.original_url, l.user_id, l.custom_slug,
	l.created_at, l.updated_at, l.deleted_at`

// CreateLink inserts a new link. A taken slug, live or deleted, yields ErrSlugExists.
func (r *Repository) CreateLink(ctx context.Context, link *model.Link) error {
	query := `
		INSERT INTO links (id, slug, original_url, user_id, custom_slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		link.ID,
		link.Slug,
		link.OriginalURL,
		nullableString(link.UserID),
		link.CustomSlug,
		link.CreatedAt,
		link.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

// GetLinkBySlug returns the live link for slug with its click count.
func (r *Repository) GetLinkBySlug(ctx context.Context, slug string) (*model.Link, error) {
	query := `SELECT ` + linkColumns + `
		FROM links l
		WHERE l.slug = $1 AND l.deleted_at IS NULL
	`

	link, err := scanLink(r.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link by slug: %w", err)
	}

	return link, nil
}

// GetLiveLinkForRedirect returns the live link for slug without its click
// count. This is the redirect hot path on a cache miss.
func (r *Repository) GetLiveLinkForRedirect(ctx context.Context, slug string) (*model.Link, error) {
	query := `SELECT ` + redirectColumns + `
		FROM links l
		WHERE l.slug = $1 AND l.deleted_at IS NULL
	`

	var link model.Link
	err := r.pool.QueryRow(ctx, query, slug).Scan(
		&link.ID,
		&link.Slug,
		&link.OriginalURL,
		&link.UserID,
		&link.CustomSlug,
		&link.CreatedAt,
		&link.UpdatedAt,
		&link.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link for redirect: %w", err)
	}

	return &link, nil
}

// SlugExists reports whether any link, including soft-deleted ones, uses slug.
func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM links WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

// ListLinksByUser returns a page of the user's live links, newest first.
func (r *Repository) ListLinksByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Link, error) {
	query := `SELECT ` + linkColumns + `
		FROM links l
		WHERE l.user_id = $1 AND l.deleted_at IS NULL
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]*model.Link, 0, limit)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

// CountLinksByUser counts the user's live links.
func (r *Repository) CountLinksByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM links WHERE user_id = $1 AND deleted_at IS NULL`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return n, nil
}

// UpdateLinkURL changes the destination of a live link.
func (r *Repository) UpdateLinkURL(ctx context.Context, id, originalURL string, updatedAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE links SET original_url = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`, id, originalURL, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// SoftDeleteLink marks a link deleted. Its slug stays reserved and its clicks remain.
func (r *Repository) SoftDeleteLink(ctx context.Context, id string, deletedAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE links SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, deletedAt)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func scanLink(row pgx.Row) (*model.Link, error) {
	var link model.Link
	err := row.Scan(
		&link.ID,
		&link.Slug,
		&link.OriginalURL,
		&link.UserID,
		&link.CustomSlug,
		&link.ClickCount,
		&link.CreatedAt,
		&link.UpdatedAt,
		&link.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &link, nil
}
