package credential

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no credential record exists for the
	// given id or email.
	ErrNotFound = errors.New("credential record not found")
	// ErrDuplicateEmail is returned when a create or email change would
	// collide with an existing record.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUnavailable wraps backend failures. Callers must treat it as a
	// denial, never as an absent record.
	ErrUnavailable = errors.New("credential backend unavailable")
)

// Record is the persisted authentication state for one account. Its ID is
// shared 1:1 with the owning user profile.
type Record struct {
	ID           string
	Email        string
	PasswordHash string
	Active       bool

	// PasswordChangedAt is the unix time of the last password change.
	// Nil means the change time was never recorded (legacy data).
	PasswordChangedAt *int64

	FailedLoginCount int

	// LockedUntil, when non-nil and in the future, refuses authentication
	// regardless of password correctness. A value in the past is
	// equivalent to no lock and is cleared lazily.
	LockedUntil *int64
}

// Locked reports whether the record carries a lock still in effect at now.
func (r *Record) Locked(now int64) bool {
	return r.LockedUntil != nil && *r.LockedUntil > now
}

// LockExpired reports whether the record carries a lock that has lapsed
// and is waiting to be lazily cleared.
func (r *Record) LockExpired(now int64) bool {
	return r.LockedUntil != nil && *r.LockedUntil <= now
}

// FailureOutcome is the post-increment state reported by
// [Store.RecordFailure].
type FailureOutcome struct {
	// FailedLoginCount is the counter value after this attempt.
	FailedLoginCount int
	// LockedUntil is the unix time the current lock expires, or 0 when
	// no lock is in effect.
	LockedUntil int64
	// AlreadyLocked is true when the attempt arrived while a lock was in
	// effect; nothing was counted in that case.
	AlreadyLocked bool
}

// Store is the persistence collaborator for credential records. Every
// method that touches the failed-attempt counter or the lock must execute
// as a single serialized read-modify-write per account.
type Store interface {
	GetByID(ctx context.Context, id string) (*Record, error)
	GetByEmail(ctx context.Context, email string) (*Record, error)

	// Create inserts a new record. The email must be unique.
	Create(ctx context.Context, rec *Record) error
	// Delete removes the record. Deleting an absent record is ErrNotFound.
	Delete(ctx context.Context, id string) error

	UpdateEmail(ctx context.Context, id, email string) error
	// UpdatePassword stores a new hash, stamps the change time, and
	// resets the failure counter and lock.
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt int64) error
	// RehashPassword replaces only the stored hash (parameter upgrades);
	// the change timestamp and counters are untouched.
	RehashPassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error

	// ClearExpiredLock atomically resets the counter and lock iff the
	// stored lock has lapsed at now. Returns whether a clear happened.
	ClearExpiredLock(ctx context.Context, id string, now int64) (bool, error)
	// RecordFailure atomically counts one failed attempt. Attempts during
	// an active lock are not counted; crossing threshold sets the lock to
	// now+lockSeconds exactly once.
	RecordFailure(ctx context.Context, id string, now int64, threshold int, lockSeconds int64) (FailureOutcome, error)
	// RecordSuccess atomically resets the counter and lock after a
	// successful authentication or password change.
	RecordSuccess(ctx context.Context, id string) error
}
