// Package analytics records click events off the redirect path and turns the
// stored events into per-link reports.
package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/mssola/useragent"

	"github.com/snaplink/snaplink/internal/model"
	"github.com/snaplink/snaplink/internal/ratelimit"
)

const (
	// UnknownBrowser is stored when the user agent yields no browser name.
	UnknownBrowser = "Unknown"

	maxReferrerLength  = 2048
	maxUserAgentLength = 1024
	// MaxBrowserLength matches clicks.browser VARCHAR(50).
	MaxBrowserLength = 50
)

// Metadata is the slice of an HTTP request a click needs. It is copied out of
// the request so the worker never touches the request after the handler returns.
type Metadata struct {
	ClientIP  string
	UserAgent string
	Referrer  string
}

// ExtractMetadata copies click metadata out of r.
func ExtractMetadata(r *http.Request) Metadata {
	referrer := r.Header.Get("Referer")
	if referrer == "" {
		referrer = r.Header.Get("Origin")
	}
	return Metadata{
		ClientIP:  ratelimit.ClientIP(r),
		UserAgent: truncate(r.Header.Get("User-Agent"), maxUserAgentLength),
		Referrer:  truncate(strings.TrimSpace(referrer), maxReferrerLength),
	}
}

// HashIP returns the hex SHA-256 of ip. Raw addresses are never stored.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

// ParseUserAgent classifies a user agent into a device type and browser name.
// Unparseable input is reported as a desktop running an unknown browser.
func ParseUserAgent(raw string) (model.DeviceType, string) {
	if strings.TrimSpace(raw) == "" {
		return model.DeviceDesktop, UnknownBrowser
	}

	ua := useragent.New(raw)
	lower := strings.ToLower(raw)

	device := model.DeviceDesktop
	switch {
	case strings.Contains(lower, "ipad"),
		strings.Contains(lower, "tablet"),
		strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		device = model.DeviceTablet
	case ua.Mobile():
		device = model.DeviceMobile
	}

	browser, _ := ua.Browser()
	browser = strings.TrimSpace(browser)
	if browser == "" {
		browser = UnknownBrowser
	}

	return device, browser
}

// NewClickEvent builds the event persisted for one redirect of linkID.
// Country and city stay nil until a geolocation source exists.
func NewClickEvent(linkID string, meta Metadata) *model.ClickEvent {
	userAgent := truncate(meta.UserAgent, maxUserAgentLength)
	device, browser := ParseUserAgent(userAgent)
	browser = truncate(browser, MaxBrowserLength)

	ev := &model.ClickEvent{
		LinkID:     linkID,
		DeviceType: device,
		Browser:    &browser,
		UserAgent:  userAgent,
		IPHash:     HashIP(meta.ClientIP),
	}
	if ref := truncate(meta.Referrer, maxReferrerLength); ref != "" {
		ev.Referrer = &ref
	}
	return ev
}

// truncate returns valid UTF-8 of at most max bytes, never splitting a rune.
// Invalid sequences are dropped since Postgres rejects them in text columns.
func truncate(s string, max int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
