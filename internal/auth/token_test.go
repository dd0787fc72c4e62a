package auth

import (
	"context"
	"testing"

	"github.com/snaplink/snaplink/internal/model"
)

func TestGenerateSessionToken(t *testing.T) {
	t.Parallel()

	plain, hash, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("GenerateSessionToken() error = %v", err)
	}
	if !LooksLikeToken(plain) {
		t.Errorf("token %q has the wrong shape", plain)
	}
	if hash != HashToken(plain) {
		t.Error("returned hash does not match HashToken")
	}
	if len(hash) != 64 {
		t.Errorf("hash length = %d", len(hash))
	}

	other, _, _ := GenerateSessionToken()
	if other == plain {
		t.Error("tokens should be unique")
	}
}

func TestLooksLikeToken(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "sl_", "sl_xyz", "pk_live_abc", "sl_" + string(make([]byte, 64))} {
		if LooksLikeToken(s) {
			t.Errorf("LooksLikeToken(%q) = true", s)
		}
	}
}

func TestPrincipalContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if PrincipalFromContext(ctx) != nil || UserIDFromContext(ctx) != "" {
		t.Error("empty context should be anonymous")
	}

	ctx = ContextWithPrincipal(ctx, &model.Principal{UserID: "u1", SessionID: "s1"})
	if UserIDFromContext(ctx) != "u1" {
		t.Errorf("UserIDFromContext = %q", UserIDFromContext(ctx))
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{"Bearer sl_abc", "sl_abc"},
		{"bearer  sl_abc ", "sl_abc"},
		{"Basic dXNlcjpwYXNz", ""},
		{"sl_abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := BearerToken(tt.header); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
