package analytics

import (
	"slices"
	"strings"
	"time"

	"github.com/snaplink/snaplink/internal/model"
)

const (
	// TopN bounds each ranked breakdown.
	TopN = 10

	labelDirect  = "direct"
	labelUnknown = "Unknown"
)

// Aggregate builds the report for events falling inside p's window ending at now.
// Events outside the window are ignored, so callers may pass a superset.
func Aggregate(slug string, events []model.ClickEvent, p Period, now time.Time) *model.AnalyticsReport {
	q := p.Query("", now)
	return &model.AnalyticsReport{
		Slug:         slug,
		Period:       string(p),
		From:         q.From,
		To:           q.To,
		ClickSummary: *Summarize(events, q),
	}
}

// Summarize aggregates the events q selects in memory. It is the reference
// for the SQL aggregation in the repository. An empty q.LinkID matches any link.
func Summarize(events []model.ClickEvent, q model.ClickQuery) *model.ClickSummary {
	g := ParseUnit(q.Bucket)
	summary := &model.ClickSummary{}

	ips := make(map[string]struct{})
	buckets := make(map[time.Time]int64)
	referrers := make(map[string]int64)
	countries := make(map[string]int64)
	browsers := make(map[string]int64)

	for i := range events {
		ev := &events[i]
		if q.LinkID != "" && ev.LinkID != q.LinkID {
			continue
		}
		if ev.CreatedAt.Before(q.From) || ev.CreatedAt.After(q.To) {
			continue
		}

		summary.TotalClicks++
		if ev.IPHash != "" {
			ips[ev.IPHash] = struct{}{}
		}
		buckets[BucketStart(ev.CreatedAt, g)]++

		countNonEmpty(referrers, ev.Referrer)
		countNonEmpty(countries, ev.Country)
		countNonEmpty(browsers, ev.Browser)

		summary.DeviceBreakdown.Add(ev.DeviceType, 1)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = TopN
	}
	summary.UniqueClicks = int64(len(ips))
	summary.ClicksByTime = timeSeries(buckets)
	summary.TopReferrers = topN(referrers, labelDirect, limit)
	summary.TopCountries = topN(countries, labelUnknown, limit)
	summary.BrowserBreakdown = topN(browsers, labelUnknown, limit)

	return summary
}

func countNonEmpty(counts map[string]int64, value *string) {
	if value == nil {
		return
	}
	if v := strings.TrimSpace(*value); v != "" {
		counts[v]++
	}
}

func timeSeries(buckets map[time.Time]int64) []model.TimeBucket {
	series := make([]model.TimeBucket, 0, len(buckets))
	for start, n := range buckets {
		series = append(series, model.TimeBucket{Start: start, Clicks: n})
	}
	slices.SortFunc(series, func(a, b model.TimeBucket) int {
		return a.Start.Compare(b.Start)
	})
	return series
}

// topN ranks counts by descending count then label. Null values never reach
// counts, so fallback only labels a blank key.
func topN(counts map[string]int64, fallback string, limit int) []model.LabelCount {
	ranked := make([]model.LabelCount, 0, len(counts))
	for label, n := range counts {
		if label == "" {
			label = fallback
		}
		ranked = append(ranked, model.LabelCount{Label: label, Count: n})
	}
	slices.SortFunc(ranked, func(a, b model.LabelCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Label, b.Label)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
