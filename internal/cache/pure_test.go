package cache

import (
	"strings"
	"testing"
)

func TestLinkKeys(t *testing.T) {
	t.Parallel()

	if got := linkKey("abc123"); got != "link:abc123" {
		t.Errorf("linkKey = %q", got)
	}
	if got := negLinkKey("abc123"); got != "link:abc123:neg" {
		t.Errorf("negLinkKey = %q", got)
	}
	if !strings.HasPrefix(negLinkKey("x"), linkKey("x")) {
		t.Error("negative key should share the positive key prefix")
	}
}

func TestNewWithClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewWithClient(nil)
	if c.linkTTL != DefaultLinkTTL {
		t.Errorf("linkTTL = %v, want %v", c.linkTTL, DefaultLinkTTL)
	}
	c.SetLinkTTL(0)
	if c.linkTTL != DefaultLinkTTL {
		t.Error("zero TTL must not override the default")
	}
	c.SetLinkTTL(DefaultLinkTTL / 2)
	if c.linkTTL != DefaultLinkTTL/2 {
		t.Errorf("linkTTL = %v after override", c.linkTTL)
	}
}
