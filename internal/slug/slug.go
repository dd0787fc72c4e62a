// Package slug generates and validates the short identifiers used in links.
package slug

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
)

const (
	// DefaultLength is the length of generated slugs.
	DefaultLength = 6

	MinLength = 3
	MaxLength = 20

	alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// ErrInvalidSlug is returned when a custom slug fails validation.
var ErrInvalidSlug = errors.New("invalid slug")

var (
	validPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
	shapePattern = regexp.MustCompile(`^[a-z0-9-]{1,20}$`)
)

// Reserved holds words that can never be used as slugs. It must contain every
// top-level path segment the router mounts, otherwise a link could shadow a route.
var Reserved = map[string]struct{}{
	"admin":     {},
	"api":       {},
	"auth":      {},
	"dashboard": {},
	"account":   {},
	"settings":  {},
	"docs":      {},
	"help":      {},
	"privacy":   {},
	"terms":     {},
	"about":     {},
	"contact":   {},
	"login":     {},
	"signup":    {},
	"trpc":      {},
	"health":    {},
	"healthz":   {},
	"readyz":    {},
	"metrics":   {},
	"static":    {},
}

// IsReserved reports whether candidate is a reserved word.
func IsReserved(candidate string) bool {
	_, ok := Reserved[candidate]
	return ok
}

// IsValid reports whether candidate can be stored as a slug.
func IsValid(candidate string) bool {
	if len(candidate) < MinLength || len(candidate) > MaxLength {
		return false
	}
	if !validPattern.MatchString(candidate) {
		return false
	}
	return !IsReserved(candidate)
}

// LooksLikeSlug is the cheap shape check applied to incoming redirect paths.
// Anything failing it can never match a stored link.
func LooksLikeSlug(s string) bool {
	return shapePattern.MatchString(s)
}

// GenerateRandom returns a slug of the given length drawn uniformly from [a-z0-9].
// Uniqueness against stored links is the caller's job.
func GenerateRandom(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}

// Resolve validates a custom slug or, when custom is empty, generates one.
func Resolve(custom string) (string, error) {
	if custom == "" {
		for {
			s, err := GenerateRandom(DefaultLength)
			if err != nil || !IsReserved(s) {
				return s, err
			}
		}
	}
	if !IsValid(custom) {
		return "", ErrInvalidSlug
	}
	return custom, nil
}
