package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/snaplink/snaplink/internal/auth"
)

func TestLogin(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()
	id := f.register(t, "login@example.com")

	result, err := f.sessions.Login(ctx, "LOGIN@example.com", "Passw0rdOK")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !auth.LooksLikeToken(result.Token) {
		t.Errorf("token %q has the wrong shape", result.Token)
	}
	if result.User.ID != id || result.Session.UserID != id {
		t.Error("session bound to wrong user")
	}
	if result.Session.TokenHash != auth.HashToken(result.Token) {
		t.Error("only the token hash should be stored")
	}

	for _, tc := range []struct{ email, password string }{
		{"login@example.com", "WrongPass1"},
		{"nobody@example.com", "Passw0rdOK"},
		{"garbage", "Passw0rdOK"},
	} {
		if _, err := f.sessions.Login(ctx, tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%s) error = %v, want ErrInvalidCredentials", tc.email, err)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()
	id := f.register(t, "auth@example.com")

	login, err := f.sessions.Login(ctx, "auth@example.com", "Passw0rdOK")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	p, err := f.sessions.Authenticate(ctx, login.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if p.UserID != id || p.Email != "auth@example.com" {
		t.Errorf("principal = %+v", p)
	}

	// Second call is served from the cache even if the store loses the row.
	_ = f.store.DeleteSessionByTokenHash(ctx, login.Session.TokenHash)
	if _, err := f.sessions.Authenticate(ctx, login.Token); err != nil {
		t.Errorf("cached Authenticate() error = %v", err)
	}

	for _, token := range []string{"", "garbage", "sl_" + "00"} {
		if _, err := f.sessions.Authenticate(ctx, token); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Authenticate(%q) error = %v", token, err)
		}
	}
}

func TestAuthenticate_Expired(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()
	f.register(t, "exp@example.com")

	login, err := f.sessions.Login(ctx, "exp@example.com", "Passw0rdOK")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	f.sessions.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	if _, err := f.sessions.Authenticate(ctx, login.Token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expired session error = %v", err)
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()
	f.register(t, "out@example.com")

	login, err := f.sessions.Login(ctx, "out@example.com", "Passw0rdOK")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := f.sessions.Authenticate(ctx, login.Token); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	if err := f.sessions.Logout(ctx, login.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := f.sessions.Authenticate(ctx, login.Token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Authenticate after logout error = %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	ctx := context.Background()
	f.register(t, "purge@example.com")

	if _, err := f.sessions.Login(ctx, "purge@example.com", "Passw0rdOK"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := f.sessions.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if f.store.SessionCount() != 1 {
		t.Fatal("live session should survive a purge")
	}

	f.sessions.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	if err := f.sessions.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if f.store.SessionCount() != 0 {
		t.Error("expired session should be purged")
	}
}
