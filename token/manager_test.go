package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		TTL:           time.Hour,
		SigningMethod: MethodHS256,
		Secret:        []byte("test-secret-at-least-32-bytes-long"),
		Issuer:        "authcore-test",
	}
}

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	m := newTestManager(t, testConfig())

	raw, err := m.Issue("user-1", time.Minute)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	claims, err := m.Validate(raw)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}
	if claims.ExpiresAt == nil {
		t.Fatal("expected expiry claim")
	}
}

func TestValidateExpired(t *testing.T) {
	m := newTestManager(t, testConfig())

	raw, err := m.Issue("user-1", time.Millisecond)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := m.Validate(raw); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestValidateTamperedSignature(t *testing.T) {
	m := newTestManager(t, testConfig())

	raw, err := m.Issue("user-1", time.Minute)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token structure: %d segments", len(parts))
	}

	// Flip one byte in the signature segment.
	sig := []byte(parts[2])
	for i := range sig {
		flipped := make([]byte, len(sig))
		copy(flipped, sig)
		if flipped[i] == 'A' {
			flipped[i] = 'B'
		} else {
			flipped[i] = 'A'
		}
		tampered := parts[0] + "." + parts[1] + "." + string(flipped)
		if tampered == raw {
			continue
		}
		if _, err := m.Validate(tampered); !errors.Is(err, ErrInvalid) {
			t.Fatalf("byte %d: expected ErrInvalid for tampered signature, got %v", i, err)
		}
	}
}

func TestValidateMalformed(t *testing.T) {
	m := newTestManager(t, testConfig())

	for _, bad := range []string{"", "not-a-token", "a.b", "a.b.c.d", "sk-not-a-jwt"} {
		if _, err := m.Validate(bad); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid for %q, got %v", bad, err)
		}
	}
}

func TestValidateWrongSecret(t *testing.T) {
	m := newTestManager(t, testConfig())

	raw, err := m.Issue("user-1", time.Minute)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	other := testConfig()
	other.Secret = []byte("a-completely-different-signing-key!!")
	m2 := newTestManager(t, other)

	if _, err := m2.Validate(raw); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid across secrets, got %v", err)
	}
}

func TestValidateMissingUserID(t *testing.T) {
	m := newTestManager(t, testConfig())

	raw, err := m.Issue("user-1", time.Minute)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	// Sanity: the issued token validates before we build a claimless one.
	if _, err := m.Validate(raw); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	if _, err := m.Issue("", time.Minute); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestNewManagerConfigValidation(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256, Secret: []byte("x")}); err == nil {
		t.Fatal("expected error for missing TTL")
	}
	if _, err := NewManager(Config{TTL: time.Hour, SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewManager(Config{TTL: time.Hour, SigningMethod: "rot13", Secret: []byte("x")}); err == nil {
		t.Fatal("expected error for unsupported method")
	}
}
