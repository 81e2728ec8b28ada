// Package password implements credential hashing, verification, and the
// password policy used by the authentication core.
//
// # Output format
//
// New hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Stored bcrypt hashes ($2a$/$2b$/$2y$ prefixes) from older deployments are
// still verified; [Hasher.NeedsUpgrade] reports true for them so callers can
// transparently re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification, and the stateless policy
// functions ([ValidateStrength], [Expired]). Lockout bookkeeping and
// failure counting belong to the Engine and the credential store.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
