package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/castellan/authcore/token"
)

func TestIssueAndValidateToken(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	raw, err := engine.IssueToken("user-1", 0)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	userID, err := engine.ValidateToken(raw)
	if err != nil {
		t.Fatalf("ValidateToken error: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("userID = %s", userID)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	raw, err := engine.IssueToken("user-1", time.Millisecond)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := engine.ValidateToken(raw); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateTokenTampered(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	raw, err := engine.IssueToken("user-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	// Swap the claimed id without re-signing.
	parts := strings.Split(raw, ".")
	parts[1] = strings.Repeat("A", len(parts[1]))
	tampered := strings.Join(parts, ".")

	if _, err := engine.ValidateToken(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := engine.ValidateToken("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("malformed: expected ErrTokenInvalid, got %v", err)
	}
}

func TestIssueAPIKeyRotates(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)

	first, err := engine.IssueAPIKey(ctx, identity.ID)
	if err != nil {
		t.Fatalf("IssueAPIKey error: %v", err)
	}
	if !strings.HasPrefix(first, token.APIKeyPrefix) {
		t.Fatalf("key %q lacks prefix", first)
	}

	second, err := engine.IssueAPIKey(ctx, identity.ID)
	if err != nil {
		t.Fatalf("IssueAPIKey error: %v", err)
	}
	if first == second {
		t.Fatal("rotation produced an identical key")
	}

	if _, err := engine.AuthenticateByAPIKey(ctx, first); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("rotated-out key must stop working, got %v", err)
	}
	result, err := engine.AuthenticateByAPIKey(ctx, second)
	if err != nil {
		t.Fatalf("AuthenticateByAPIKey error: %v", err)
	}
	if result.Method != MethodAPIKey || result.Identity.ID != identity.ID {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestAuthenticateByAPIKeyDisabled(t *testing.T) {
	engine, _, _ := newTestEngine(t, func(cfg *Config) {
		cfg.APIKey.Enabled = false
	})

	_, err := engine.AuthenticateByAPIKey(context.Background(), token.NewAPIKey())
	if !errors.Is(err, ErrAPIKeyDisabled) {
		t.Fatalf("expected ErrAPIKeyDisabled, got %v", err)
	}
}

func TestAuthenticateByAPIKeySkipsLockout(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)
	key, err := engine.IssueAPIKey(ctx, identity.ID)
	if err != nil {
		t.Fatalf("IssueAPIKey error: %v", err)
	}

	for i := 0; i < 5; i++ {
		_, _ = engine.Authenticate(ctx, "alice@example.com", "Wrong123!")
	}

	// The lock gates passwords, not API keys.
	if _, err := engine.AuthenticateByAPIKey(ctx, key); err != nil {
		t.Fatalf("AuthenticateByAPIKey during lockout error: %v", err)
	}
}

func TestAuthenticateByAPIKeyInactive(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)
	key, _ := engine.IssueAPIKey(ctx, identity.ID)
	if err := engine.SetActive(ctx, identity.ID, false); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}

	if _, err := engine.AuthenticateByAPIKey(ctx, key); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateByTrustedHeader(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	mustCreateAccount(t, engine, "alice@example.com", goodPassword)

	if _, err := engine.AuthenticateByTrustedHeader(ctx, "alice@example.com"); !errors.Is(err, ErrTrustedHeaderDisabled) {
		t.Fatalf("expected ErrTrustedHeaderDisabled, got %v", err)
	}
}

func TestAuthenticateByTrustedHeaderEnabled(t *testing.T) {
	sink := NewChannelSink(16)
	engine, _, _ := newTestEngineWithSink(t, func(cfg *Config) {
		cfg.TrustedHeader.Enabled = true
		cfg.Audit.Enabled = true
	}, sink)
	ctx := context.Background()

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)

	result, err := engine.AuthenticateByTrustedHeader(ctx, "Alice@Example.com")
	if err != nil {
		t.Fatalf("AuthenticateByTrustedHeader error: %v", err)
	}
	if result.Method != MethodTrustedHeader || result.Identity.ID != identity.ID {
		t.Fatalf("unexpected result: %+v", result)
	}

	event := waitForEvent(t, sink, auditEventTrustedHeaderLogin)
	if event.Method != MethodTrustedHeader || !event.Success {
		t.Fatalf("audit event: %+v", event)
	}

	if _, err := engine.AuthenticateByTrustedHeader(ctx, "nobody@example.com"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCurrentUserWithBearerToken(t *testing.T) {
	engine, _, dir := newTestEngine(t, nil)
	ctx := context.Background()

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)
	raw, _ := engine.IssueToken(identity.ID, time.Hour)

	result, err := engine.CurrentUser(ctx, raw)
	if err != nil {
		t.Fatalf("CurrentUser error: %v", err)
	}
	if result.Method != MethodToken || result.Identity.ID != identity.ID {
		t.Fatalf("unexpected result: %+v", result)
	}

	// The last-active refresh is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for dir.lastActiveAt(identity.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("last-active never refreshed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCurrentUserWithAPIKey(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)
	key, _ := engine.IssueAPIKey(ctx, identity.ID)

	result, err := engine.CurrentUser(ctx, key)
	if err != nil {
		t.Fatalf("CurrentUser error: %v", err)
	}
	if result.Method != MethodAPIKey {
		t.Fatalf("method = %s", result.Method)
	}
}

func TestCurrentUserAPIKeyEndpointAllowList(t *testing.T) {
	engine, _, _ := newTestEngine(t, func(cfg *Config) {
		cfg.APIKey.RestrictEndpoints = true
		cfg.APIKey.AllowedEndpoints = []string{"/api/models"}
	})
	ctx := context.Background()

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)
	key, _ := engine.IssueAPIKey(ctx, identity.ID)

	cases := []struct {
		path string
		ok   bool
	}{
		{"/api/models", true},
		{"/api/models/list", true},
		{"/api/modelsextra", false},
		{"/api/chat", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := engine.CurrentUser(WithRequestPath(ctx, tc.path), key)
		if tc.ok && err != nil {
			t.Fatalf("path %q: unexpected error %v", tc.path, err)
		}
		if !tc.ok && !errors.Is(err, ErrAccessProhibited) {
			t.Fatalf("path %q: expected ErrAccessProhibited, got %v", tc.path, err)
		}
	}

	// Bearer tokens are not path restricted.
	raw, _ := engine.IssueToken(identity.ID, time.Hour)
	if _, err := engine.CurrentUser(WithRequestPath(ctx, "/api/chat"), raw); err != nil {
		t.Fatalf("bearer token on restricted path: %v", err)
	}
}

func TestCurrentUserExpiredToken(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)
	raw, _ := engine.IssueToken(identity.ID, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	if _, err := engine.CurrentUser(context.Background(), raw); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestCurrentUserInactiveAccount(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)
	raw, _ := engine.IssueToken(identity.ID, time.Hour)
	if err := engine.SetActive(ctx, identity.ID, false); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}

	if _, err := engine.CurrentUser(ctx, raw); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
