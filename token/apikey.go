package token

import (
	"strings"

	"github.com/google/uuid"
)

// APIKeyPrefix structurally marks API keys so they can never be confused
// with signed bearer tokens on the wire.
const APIKeyPrefix = "sk-"

// Kind classifies a raw credential string by structure.
type Kind int

const (
	// KindBearer is a signed bearer/session token.
	KindBearer Kind = iota
	// KindAPIKey is an opaque long-lived API key.
	KindAPIKey
)

// NewAPIKey generates an opaque API key: the fixed prefix followed by
// 32 random hex characters. API keys carry no expiry; revocation is by
// rotation or deletion.
func NewAPIKey() string {
	return APIKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// KindOf reports whether a raw credential string is an API key or a
// bearer token, by prefix alone.
func KindOf(raw string) Kind {
	if strings.HasPrefix(raw, APIKeyPrefix) {
		return KindAPIKey
	}
	return KindBearer
}
