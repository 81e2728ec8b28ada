// Package token issues and validates the two credential forms accepted by
// the authentication core.
//
// Bearer tokens are signed JWTs (HS256 by default, Ed25519 optional)
// carrying the account identifier and an expiry claim. API keys are
// long-lived opaque strings marked by the fixed "sk-" prefix; they carry
// no signature and no expiry and are resolved by exact-match lookup.
// [KindOf] tells the two apart structurally so a request path never has
// to guess.
//
// # What this package must NOT do
//
//   - Look up accounts; it validates structure and signature only.
//   - Accept unsigned ("none") or cross-algorithm tokens.
//   - Expose the signing secret through any accessor.
package token
