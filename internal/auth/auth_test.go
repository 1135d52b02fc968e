package auth

import (
	"context"
	"testing"

	"github.com/triageops/controlplane/internal/config"
	"github.com/triageops/controlplane/internal/store"
)

func newTestService(t *testing.T, allowSignup bool) *Service {
	t.Helper()
	st := store.NewMemoryStore()
	signup := "false"
	if allowSignup {
		signup = "true"
	}
	svc, err := NewService(st, config.AuthConfig{
		JWTSecret:     "test-secret",
		JWTAccessTTL:  "15m",
		JWTRefreshTTL: "168h",
		AllowSignup:   signup,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRegisterLoginAndParseAccessToken(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()

	access, refresh, expiresIn, err := svc.Register(ctx, "operator", "hunter22")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if access == "" || refresh == "" || expiresIn <= 0 {
		t.Fatal("expected non-empty tokens and positive expiresIn")
	}

	user, err := svc.ParseAccessToken(access)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if user.LoginID != "operator" {
		t.Fatalf("expected loginID operator, got %q", user.LoginID)
	}

	access2, _, _, err := svc.Login(ctx, "operator", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if access2 == "" {
		t.Fatal("expected login to issue an access token")
	}
}

func TestRegisterRejectedWhenSignupDisabled(t *testing.T) {
	svc := newTestService(t, false)
	if _, _, _, err := svc.Register(context.Background(), "operator", "hunter22"); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()
	if _, _, _, err := svc.Register(ctx, "operator", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, _, err := svc.Login(ctx, "operator", "wrong-password"); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRegisterRejectsDuplicateLoginID(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()
	if _, _, _, err := svc.Register(ctx, "operator", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, _, err := svc.Register(ctx, "operator", "another-pass"); err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()
	_, refresh, _, err := svc.Register(ctx, "operator", "hunter22")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	newAccess, newRefresh, _, err := svc.Refresh(ctx, refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if newAccess == "" || newRefresh == "" {
		t.Fatal("expected new tokens from refresh")
	}
	if newRefresh == refresh {
		t.Fatal("expected a freshly rotated refresh token")
	}

	if _, _, _, err := svc.Refresh(ctx, refresh); err != ErrUnauthorized {
		t.Fatalf("expected old refresh token to be rejected, got %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()
	_, refresh, _, err := svc.Register(ctx, "operator", "hunter22")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.Logout(ctx, refresh); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, _, _, err := svc.Refresh(ctx, refresh); err != ErrUnauthorized {
		t.Fatalf("expected revoked refresh token to be rejected, got %v", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc := newTestService(t, false)
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "admin", "supersecret"); err != nil {
		t.Fatalf("EnsureAdmin first call: %v", err)
	}
	if err := svc.EnsureAdmin(ctx, "admin", "supersecret"); err != nil {
		t.Fatalf("EnsureAdmin second call should be a no-op: %v", err)
	}

	if _, _, _, err := svc.Login(ctx, "admin", "supersecret"); err != nil {
		t.Fatalf("expected bootstrapped admin to be able to log in: %v", err)
	}
}

func TestNewServiceRejectsMissingJWTSecret(t *testing.T) {
	st := store.NewMemoryStore()
	if _, err := NewService(st, config.AuthConfig{JWTAccessTTL: "15m", JWTRefreshTTL: "168h"}); err == nil {
		t.Fatal("expected error when JWT_SECRET is missing")
	}
}

func TestNewServiceRejectsSameSiteNoneWithoutSecure(t *testing.T) {
	st := store.NewMemoryStore()
	_, err := NewService(st, config.AuthConfig{
		JWTSecret:      "test-secret",
		JWTAccessTTL:   "15m",
		JWTRefreshTTL:  "168h",
		CookieSecure:   "false",
		CookieSameSite: "none",
	})
	if err == nil {
		t.Fatal("expected error for SameSite=None without Secure")
	}
}
