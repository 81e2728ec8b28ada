package token

import (
	"strings"
	"testing"
)

func TestNewAPIKeyFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := NewAPIKey()
		if !strings.HasPrefix(key, APIKeyPrefix) {
			t.Fatalf("missing prefix: %s", key)
		}
		if len(key) != len(APIKeyPrefix)+32 {
			t.Fatalf("unexpected key length %d: %s", len(key), key)
		}
		if strings.Contains(key[len(APIKeyPrefix):], "-") {
			t.Fatalf("key body must be bare hex: %s", key)
		}
		if seen[key] {
			t.Fatalf("duplicate key generated: %s", key)
		}
		seen[key] = true
	}
}

func TestKindOf(t *testing.T) {
	if KindOf("sk-abc123") != KindAPIKey {
		t.Fatal("sk- prefix must classify as API key")
	}
	if KindOf("eyJhbGciOiJIUzI1NiJ9.e30.sig") != KindBearer {
		t.Fatal("JWT-shaped string must classify as bearer")
	}
	if KindOf("") != KindBearer {
		t.Fatal("empty string defaults to bearer handling")
	}
}
