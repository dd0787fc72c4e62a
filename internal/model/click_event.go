package model

import "time"

// DeviceType classifies the device a click came from.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
	DeviceUnknown DeviceType = "unknown"
)

// Normalize maps anything other than the three known device types to DeviceUnknown.
func (d DeviceType) Normalize() DeviceType {
	switch d {
	case DeviceMobile, DeviceTablet, DeviceDesktop:
		return d
	default:
		return DeviceUnknown
	}
}

// ClickEvent is one recorded redirect. Rows are append-only and outlive
// the soft deletion of their link.
type ClickEvent struct {
	ID         int64      `json:"id"`
	LinkID     string     `json:"linkId"`
	CreatedAt  time.Time  `json:"createdAt"`
	Referrer   *string    `json:"referrer,omitempty"`
	Country    *string    `json:"country,omitempty"`
	City       *string    `json:"city,omitempty"`
	DeviceType DeviceType `json:"deviceType"`
	Browser    *string    `json:"browser,omitempty"`
	UserAgent  string     `json:"userAgent"`
	IPHash     string     `json:"-"`
}
