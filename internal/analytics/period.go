package analytics

import (
	"errors"
	"time"

	"github.com/snaplink/snaplink/internal/model"
)

// ErrInvalidPeriod is returned for a period outside the lookup table.
var ErrInvalidPeriod = errors.New("invalid period")

// Period selects the report window.
type Period string

const (
	PeriodHour  Period = "hour"
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"

	// DefaultPeriod applies when the caller names none.
	DefaultPeriod = PeriodDay
)

// Granularity is the width of a time bucket.
type Granularity int

const (
	Hourly Granularity = iota
	Daily
)

type window struct {
	span        time.Duration
	granularity Granularity
}

// The hour period looks at the trailing day in hourly buckets, same as day.
var periods = map[Period]window{
	PeriodHour:  {span: 24 * time.Hour, granularity: Hourly},
	PeriodDay:   {span: 24 * time.Hour, granularity: Hourly},
	PeriodWeek:  {span: 7 * 24 * time.Hour, granularity: Daily},
	PeriodMonth: {span: 30 * 24 * time.Hour, granularity: Daily},
}

// ParsePeriod maps a query value onto a Period. Empty means DefaultPeriod.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return DefaultPeriod, nil
	}
	p := Period(s)
	if _, ok := periods[p]; !ok {
		return "", ErrInvalidPeriod
	}
	return p, nil
}

// Since returns the start of the period's window ending at now.
func (p Period) Since(now time.Time) time.Time {
	return now.Add(-periods[p].span)
}

// Granularity returns the bucket width used for p.
func (p Period) Granularity() Granularity {
	return periods[p].granularity
}

// Unit returns the date_trunc unit for g.
func (g Granularity) Unit() string {
	if g == Daily {
		return "day"
	}
	return "hour"
}

// ParseUnit is the inverse of Unit. Anything but "day" is Hourly.
func ParseUnit(unit string) Granularity {
	if unit == "day" {
		return Daily
	}
	return Hourly
}

// Query returns the click query covering p's window ending at now.
func (p Period) Query(linkID string, now time.Time) model.ClickQuery {
	return model.ClickQuery{
		LinkID: linkID,
		From:   p.Since(now).UTC(),
		To:     now.UTC(),
		Bucket: p.Granularity().Unit(),
		Limit:  TopN,
	}
}

// BucketStart truncates t to the start of its bucket in UTC.
func BucketStart(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	if g == Daily {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t.Truncate(time.Hour)
}
