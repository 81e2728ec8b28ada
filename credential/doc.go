// Package credential persists per-account authentication state: the
// password hash, the activation flag, the password-change timestamp, and
// the failed-attempt/lockout bookkeeping.
//
// Two [Store] implementations are provided. [RedisStore] keeps one hash
// per account and funnels every counter or lock mutation through a Lua
// script, so each account sees a single serialized read-modify-write.
// [PostgresStore] holds one row per account and serializes the same
// mutations with row-level locks (SELECT ... FOR UPDATE) inside short
// transactions.
//
// # Invariants both stores must uphold
//
//   - Concurrent failed attempts never lose an increment and never count
//     past the lockout threshold.
//   - A lock is set exactly once per lockout episode, never re-extended by
//     attempts arriving while it is in effect.
//   - A lock timestamp in the past is dead state: RecordFailure and
//     ClearExpiredLock reset the counter together with the lock.
//   - RecordSuccess always leaves the counter at zero and the lock unset.
//
// # What this package must NOT do
//
//   - Compare passwords; hashes are opaque payloads here.
//   - Decide lockout policy; thresholds and durations arrive as arguments.
package credential
