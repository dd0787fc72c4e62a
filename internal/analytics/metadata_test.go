package analytics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/snaplink/snaplink/internal/model"
)

func TestHashIP(t *testing.T) {
	t.Parallel()

	h1 := HashIP("203.0.113.1")
	h2 := HashIP("203.0.113.1")
	h3 := HashIP("203.0.113.2")

	if h1 != h2 {
		t.Error("hash should be deterministic")
	}
	if h1 == h3 {
		t.Error("different IPs should hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
	if strings.Contains(h1, "203.0.113.1") {
		t.Error("hash must not contain the raw IP")
	}
}

func TestParseUserAgent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		ua          string
		wantDevice  model.DeviceType
		wantBrowser string
	}{
		{
			name:        "empty",
			ua:          "",
			wantDevice:  model.DeviceDesktop,
			wantBrowser: UnknownBrowser,
		},
		{
			name:        "desktop chrome",
			ua:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			wantDevice:  model.DeviceDesktop,
			wantBrowser: "Chrome",
		},
		{
			name:        "iphone safari",
			ua:          "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			wantDevice:  model.DeviceMobile,
			wantBrowser: "Safari",
		},
		{
			name:        "ipad",
			ua:          "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
			wantDevice:  model.DeviceTablet,
			wantBrowser: "Safari",
		},
		{
			name:        "android tablet",
			ua:          "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			wantDevice:  model.DeviceTablet,
			wantBrowser: "Chrome",
		},
		{
			name:        "android phone",
			ua:          "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Mobile Safari/537.36",
			wantDevice:  model.DeviceMobile,
			wantBrowser: "Chrome",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			device, browser := ParseUserAgent(tt.ua)
			if device != tt.wantDevice {
				t.Errorf("device = %q, want %q", device, tt.wantDevice)
			}
			if browser != tt.wantBrowser {
				t.Errorf("browser = %q, want %q", browser, tt.wantBrowser)
			}
		})
	}
}

func TestExtractMetadata(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/abc123", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.2")
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("Referer", "https://news.example.com/post")

	meta := ExtractMetadata(req)
	if meta.ClientIP != "198.51.100.4" {
		t.Errorf("ClientIP = %q", meta.ClientIP)
	}
	if meta.UserAgent != "curl/8.0" {
		t.Errorf("UserAgent = %q", meta.UserAgent)
	}
	if meta.Referrer != "https://news.example.com/post" {
		t.Errorf("Referrer = %q", meta.Referrer)
	}
}

func TestExtractMetadata_OriginFallback(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/abc123", nil)
	req.Header.Set("Origin", "https://app.example.com")

	meta := ExtractMetadata(req)
	if meta.Referrer != "https://app.example.com" {
		t.Errorf("Referrer = %q, want origin", meta.Referrer)
	}
	if meta.ClientIP != "127.0.0.1" {
		t.Errorf("ClientIP = %q, want loopback fallback", meta.ClientIP)
	}
}

func TestNewClickEvent(t *testing.T) {
	t.Parallel()

	ev := NewClickEvent("link-1", Metadata{ClientIP: "192.0.2.1", UserAgent: ""})

	if ev.LinkID != "link-1" {
		t.Errorf("LinkID = %q", ev.LinkID)
	}
	if ev.Referrer != nil {
		t.Errorf("Referrer = %q, want nil", *ev.Referrer)
	}
	if ev.Country != nil || ev.City != nil {
		t.Error("country and city must stay nil")
	}
	if ev.DeviceType != model.DeviceDesktop {
		t.Errorf("DeviceType = %q, want desktop", ev.DeviceType)
	}
	if ev.Browser == nil || *ev.Browser != UnknownBrowser {
		t.Errorf("Browser = %v, want Unknown", ev.Browser)
	}
	if ev.IPHash != HashIP("192.0.2.1") {
		t.Error("IPHash mismatch")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short ascii", in: "curl/8.0", max: 10, want: "curl/8.0"},
		{name: "ascii cut", in: "abcdef", max: 4, want: "abcd"},
		{name: "cut inside two-byte rune", in: "aaaé", max: 4, want: "aaa"},
		{name: "cut after rune", in: "aaé", max: 4, want: "aaé"},
		{name: "cut inside three-byte rune", in: "a€b", max: 3, want: "a"},
		{name: "invalid bytes dropped", in: "ab\xffcd", max: 10, want: "abcd"},
		{name: "invalid bytes before cut", in: "\xfe\xffabc", max: 2, want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := truncate(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) is not valid UTF-8", tt.in, tt.max)
			}
		})
	}
}

func TestExtractMetadata_MultiByteAtLimit(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/abc123", nil)
	req.Header.Set("User-Agent", strings.Repeat("a", maxUserAgentLength-1)+"é")
	req.Header.Set("Referer", "https://example.com/\xff")

	meta := ExtractMetadata(req)
	if len(meta.UserAgent) > maxUserAgentLength || !utf8.ValidString(meta.UserAgent) {
		t.Errorf("UserAgent len=%d valid=%v", len(meta.UserAgent), utf8.ValidString(meta.UserAgent))
	}
	if meta.Referrer != "https://example.com/" {
		t.Errorf("Referrer = %q", meta.Referrer)
	}
}

func TestNewClickEvent_FitsColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta Metadata
	}{
		{
			name: "long product token",
			meta: Metadata{ClientIP: "192.0.2.1", UserAgent: strings.Repeat("Abcdefghij", 7) + "/1.0"},
		},
		{
			name: "invalid utf-8 everywhere",
			meta: Metadata{ClientIP: "192.0.2.1", UserAgent: "Bad\xffAgent/1.0", Referrer: "https://r.example/\xfe"},
		},
		{
			name: "oversized fields built by hand",
			meta: Metadata{
				ClientIP:  "192.0.2.1",
				UserAgent: strings.Repeat("é", maxUserAgentLength),
				Referrer:  strings.Repeat("€", maxReferrerLength),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := NewClickEvent("link-1", tt.meta)

			if ev.Browser == nil || len(*ev.Browser) > MaxBrowserLength || !utf8.ValidString(*ev.Browser) {
				t.Errorf("Browser = %v does not fit the column", ev.Browser)
			}
			if len(ev.UserAgent) > maxUserAgentLength || !utf8.ValidString(ev.UserAgent) {
				t.Errorf("UserAgent len=%d valid=%v", len(ev.UserAgent), utf8.ValidString(ev.UserAgent))
			}
			if ev.Referrer != nil && (len(*ev.Referrer) > maxReferrerLength || !utf8.ValidString(*ev.Referrer)) {
				t.Errorf("Referrer len=%d valid=%v", len(*ev.Referrer), utf8.ValidString(*ev.Referrer))
			}
		})
	}
}
