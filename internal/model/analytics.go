package model

import "time"

// TimeBucket is the click count for one bucket of a time series.
type TimeBucket struct {
	Start  time.Time `json:"time"`
	Clicks int64     `json:"clicks"`
}

// LabelCount is one row of a ranked breakdown.
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// DeviceBreakdown tallies clicks by device class.
type DeviceBreakdown struct {
	Mobile  int64 `json:"mobile"`
	Tablet  int64 `json:"tablet"`
	Desktop int64 `json:"desktop"`
	Unknown int64 `json:"unknown"`
}

// Add counts n clicks of device type d. Unrecognised types count as unknown.
func (b *DeviceBreakdown) Add(d DeviceType, n int64) {
	switch d.Normalize() {
	case DeviceMobile:
		b.Mobile += n
	case DeviceTablet:
		b.Tablet += n
	case DeviceDesktop:
		b.Desktop += n
	default:
		b.Unknown += n
	}
}

// ClickQuery selects the clicks of one link created inside [From, To].
type ClickQuery struct {
	LinkID string
	From   time.Time
	To     time.Time
	// Bucket is the time series unit, "hour" or "day".
	Bucket string
	// Limit caps each ranked breakdown.
	Limit int
}

// ClickSummary is the aggregate of the clicks a ClickQuery selects.
// UniqueClicks counts distinct IP hashes and is therefore approximate:
// visitors sharing a NAT or proxy collapse into one.
type ClickSummary struct {
	TotalClicks      int64           `json:"totalClicks"`
	UniqueClicks     int64           `json:"uniqueClicks"`
	ClicksByTime     []TimeBucket    `json:"clicksByTime"`
	TopReferrers     []LabelCount    `json:"topReferrers"`
	TopCountries     []LabelCount    `json:"topCountries"`
	BrowserBreakdown []LabelCount    `json:"browserBreakdown"`
	DeviceBreakdown  DeviceBreakdown `json:"deviceBreakdown"`
}

// AnalyticsReport is the aggregated view of a link's clicks over a period.
type AnalyticsReport struct {
	Slug   string    `json:"slug"`
	Period string    `json:"period"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	ClickSummary
}
