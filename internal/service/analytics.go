package service

import (
	"context"
	"fmt"
	"time"

	"github.com/snaplink/snaplink/internal/analytics"
	"github.com/snaplink/snaplink/internal/model"
)

// ClickSummarizer aggregates a link's clicks where they are stored.
type ClickSummarizer interface {
	SummarizeClicks(ctx context.Context, q model.ClickQuery) (*model.ClickSummary, error)
}

// AnalyticsService builds click reports for links.
type AnalyticsService struct {
	links  *LinkService
	clicks ClickSummarizer
	now    func() time.Time
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(links *LinkService, clicks ClickSummarizer) *AnalyticsService {
	return &AnalyticsService{
		links:  links,
		clicks: clicks,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Report aggregates the clicks of a live link over period. The viewer must
// be allowed to see the link.
func (s *AnalyticsService) Report(ctx context.Context, viewerID, code, period string) (*model.AnalyticsReport, error) {
	p, err := analytics.ParsePeriod(period)
	if err != nil {
		return nil, invalid("period", "period must be one of hour, day, week, month")
	}

	link, err := s.links.GetLink(ctx, viewerID, code)
	if err != nil {
		return nil, err
	}

	q := p.Query(link.ID, s.now())
	summary, err := s.clicks.SummarizeClicks(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize clicks: %w", err)
	}

	return &model.AnalyticsReport{
		Slug:         link.Slug,
		Period:       string(p),
		From:         q.From,
		To:           q.To,
		ClickSummary: *summary,
	}, nil
}
