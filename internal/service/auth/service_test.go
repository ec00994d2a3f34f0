package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/elijificent/experimentation/internal/repository/document"
	"github.com/elijificent/experimentation/internal/store"
	"github.com/elijificent/experimentation/pkg/config"
)

func newService(t *testing.T) Service {
	t.Helper()
	users := document.NewUsers(store.NewMemory())
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.APIConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
	return New(users, log, cfg)
}

func TestCreateUserValidatesUsername(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	cases := []string{
		"abcd",             // too short
		"user@name",        // forbidden character
		"has#hash",         // forbidden character
		"braces{user}",     // forbidden characters
		"percent%user",     // forbidden character
		strings.Repeat("a", 51), // too long
	}
	for _, username := range cases {
		if _, err := svc.CreateUser(ctx, username, "sufficiently-long"); !errors.Is(err, ErrInvalidUsername) {
			t.Fatalf("username %q: expected ErrInvalidUsername, got %v", username, err)
		}
	}
}

func TestCreateUserValidatesPassword(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for _, password := range []string{"short", "password", "PASSWORD", "123456"} {
		if _, err := svc.CreateUser(ctx, "valid-user", password); !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("password %q: expected ErrWeakPassword, got %v", password, err)
		}
	}
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "experimenter", "a-strong-password"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.CreateUser(ctx, "experimenter", "another-password"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestValidateAuth(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "experimenter", "a-strong-password")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	user, err := svc.ValidateAuth(ctx, "experimenter", "a-strong-password")
	if err != nil {
		t.Fatalf("validate with correct password: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("validated wrong user: %q vs %q", user.ID, created.ID)
	}

	if _, err := svc.ValidateAuth(ctx, "experimenter", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.ValidateAuth(ctx, "nobody", "a-strong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestLoginIssuesUsableTokens(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "experimenter", "a-strong-password")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	user, tokens, err := svc.Login(ctx, "experimenter", "a-strong-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("login returned wrong user")
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("login returned empty tokens")
	}

	authorized, claims, err := svc.Authorize(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if authorized.ID != created.ID || claims.UserID != created.ID {
		t.Fatal("authorize resolved wrong user")
	}
}

func TestAuthorizeRejectsGarbage(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, _, err := svc.Authorize(ctx, ""); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, _, err := svc.Authorize(ctx, "not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestUpdateUsername(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "experimenter", "a-strong-password")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := svc.CreateUser(ctx, "other-user", "another-strong-one"); err != nil {
		t.Fatalf("create second user: %v", err)
	}

	renamed, err := svc.UpdateUsername(ctx, created.ID, "renamed-user")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Username != "renamed-user" {
		t.Fatalf("username = %q, want renamed-user", renamed.Username)
	}

	if _, err := svc.UpdateUsername(ctx, created.ID, "other-user"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := svc.UpdateUsername(ctx, created.ID, "ab"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	// Renaming to the current name is a no-op, not a collision.
	same, err := svc.UpdateUsername(ctx, created.ID, "renamed-user")
	if err != nil {
		t.Fatalf("self-rename: %v", err)
	}
	if same.Username != "renamed-user" {
		t.Fatalf("self-rename changed username: %q", same.Username)
	}
}
