package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// Bucket names. Each bucket keeps its own counters.
const (
	BucketAnonymousCreate = "anonymous-create"
	BucketAuthenticated   = "authenticated"
	BucketRedirect        = "redirect"
)

// Policy is a quota of Max requests per Window.
type Policy struct {
	Name   string
	Max    int
	Window time.Duration
}

// Policies is the table of quotas applied by the HTTP layer.
type Policies struct {
	AnonymousCreate Policy
	Authenticated   Policy
	Redirect        Policy
}

// DefaultPolicies returns the stock quotas.
func DefaultPolicies() Policies {
	return Policies{
		AnonymousCreate: Policy{Name: BucketAnonymousCreate, Max: 5, Window: time.Hour},
		Authenticated:   Policy{Name: BucketAuthenticated, Max: 100, Window: time.Minute},
		Redirect:        Policy{Name: BucketRedirect, Max: 1000, Window: time.Minute},
	}
}

// Key builds the counter key for a policy and caller identity, plus optional scope
// segments such as a slug.
func Key(p Policy, identity string, scope ...string) string {
	parts := make([]string, 0, 2+len(scope))
	parts = append(parts, p.Name)
	parts = append(parts, scope...)
	parts = append(parts, identity)
	return strings.Join(parts, ":")
}

// FallbackIP is used when a request carries no forwarding headers. Behind an
// untrusted proxy every caller collapses onto this one key.
const FallbackIP = "127.0.0.1"

// ClientIP returns the first X-Forwarded-For entry, then X-Real-IP, then FallbackIP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return FallbackIP
}

// Identity is "user:{id}" for authenticated callers and "ip:{clientIp}" otherwise.
func Identity(userID string, r *http.Request) string {
	if userID != "" {
		return "user:" + userID
	}
	return "ip:" + ClientIP(r)
}
