package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/snaplink/snaplink/internal/model"
)

// InsertClick appends one click event. The id and timestamp are assigned by
// the database and written back into event.
func (r *Repository) InsertClick(ctx context.Context, event *model.ClickEvent) error {
	query := `
		INSERT INTO clicks (link_id, referrer, country, city, device_type, browser, user_agent, ip_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		event.LinkID,
		nullableString(event.Referrer),
		nullableString(event.Country),
		nullableString(event.City),
		string(event.DeviceType),
		nullableString(event.Browser),
		event.UserAgent,
		event.IPHash,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert click: %w", err)
	}

	return nil
}

// ListClicksSince returns the link's clicks at or after since, oldest first.
func (r *Repository) ListClicksSince(ctx context.Context, linkID string, since time.Time) ([]model.ClickEvent, error) {
	query := `
		SELECT id, link_id, created_at, referrer, country, city, device_type, browser, user_agent, ip_hash
		FROM clicks
		WHERE link_id = $1 AND created_at >= $2
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, linkID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ClickEvent, error) {
		var (
			ev     model.ClickEvent
			device *string
		)
		err := row.Scan(
			&ev.ID,
			&ev.LinkID,
			&ev.CreatedAt,
			&ev.Referrer,
			&ev.Country,
			&ev.City,
			&device,
			&ev.Browser,
			&ev.UserAgent,
			&ev.IPHash,
		)
		if device != nil {
			ev.DeviceType = model.DeviceType(*device)
		}
		return ev, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan clicks: %w", err)
	}

	return events, nil
}

const clickWindow = `link_id = $1 AND created_at >= $2 AND created_at <= $3`

// rankedQuery groups the trimmed, non-blank values of column by count. Ties
// order by byte-wise label so results match the in-memory aggregation.
func rankedQuery(column string) string {
	return `
		SELECT btrim(` + column + `) AS label, COUNT(*) AS n
		FROM clicks
		WHERE ` + clickWindow + ` AND ` + column + ` IS NOT NULL AND btrim(` + column + `) <> ''
		GROUP BY label
		ORDER BY n DESC, label COLLATE "C" ASC
		LIMIT $4
	`
}

// SummarizeClicks aggregates the clicks q selects inside Postgres, so a report
// never loads raw rows. All queries go out in one batch.
func (r *Repository) SummarizeClicks(ctx context.Context, q model.ClickQuery) (*model.ClickSummary, error) {
	unit := q.Bucket
	if unit != "day" {
		unit = "hour"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		SELECT COUNT(*), COUNT(DISTINCT NULLIF(ip_hash, ''))
		FROM clicks
		WHERE `+clickWindow, q.LinkID, q.From, q.To)
	batch.Queue(`
		SELECT date_trunc($4, created_at AT TIME ZONE 'UTC') AS bucket, COUNT(*)
		FROM clicks
		WHERE `+clickWindow+`
		GROUP BY bucket
		ORDER BY bucket ASC
	`, q.LinkID, q.From, q.To, unit)
	batch.Queue(rankedQuery("referrer"), q.LinkID, q.From, q.To, limit)
	batch.Queue(rankedQuery("country"), q.LinkID, q.From, q.To, limit)
	batch.Queue(rankedQuery("browser"), q.LinkID, q.From, q.To, limit)
	batch.Queue(`
		SELECT device_type, COUNT(*)
		FROM clicks
		WHERE `+clickWindow+`
		GROUP BY device_type
	`, q.LinkID, q.From, q.To)

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	var summary model.ClickSummary
	if err := br.QueryRow().Scan(&summary.TotalClicks, &summary.UniqueClicks); err != nil {
		return nil, fmt.Errorf("failed to count clicks: %w", err)
	}

	rows, err := br.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to bucket clicks: %w", err)
	}
	summary.ClicksByTime, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.TimeBucket, error) {
		var b model.TimeBucket
		err := row.Scan(&b.Start, &b.Clicks)
		b.Start = b.Start.UTC()
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bucket clicks: %w", err)
	}

	for _, dst := range []*[]model.LabelCount{&summary.TopReferrers, &summary.TopCountries, &summary.BrowserBreakdown} {
		rows, err := br.Query()
		if err != nil {
			return nil, fmt.Errorf("failed to rank clicks: %w", err)
		}
		*dst, err = pgx.CollectRows(rows, pgx.RowToStructByPos[model.LabelCount])
		if err != nil {
			return nil, fmt.Errorf("failed to rank clicks: %w", err)
		}
	}

	rows, err = br.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to group devices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			device string
			n      int64
		)
		if err := rows.Scan(&device, &n); err != nil {
			return nil, fmt.Errorf("failed to group devices: %w", err)
		}
		summary.DeviceBreakdown.Add(model.DeviceType(device), n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to group devices: %w", err)
	}

	return &summary, nil
}
