package authcore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned for any login failure the caller is
	// allowed to see: unknown email, deactivated account, or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned when the account is under an active
	// lockout and Lockout.ExposeLockState is enabled.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive marks a deactivated account internally.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountExists is returned when the email is already provisioned.
	ErrAccountExists = errors.New("account already exists")
	// ErrNotFound is returned by lookups for unknown account ids.
	ErrNotFound = errors.New("account not found")
	// ErrTokenExpired is returned for structurally valid tokens past exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed or tampered tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrAccessProhibited is returned by every gate predicate failure.
	ErrAccessProhibited = errors.New("access prohibited")
	// ErrAPIKeyDisabled is returned when API key authentication is off.
	ErrAPIKeyDisabled = errors.New("api key authentication disabled")
	// ErrTrustedHeaderDisabled is returned when trusted header
	// authentication is off.
	ErrTrustedHeaderDisabled = errors.New("trusted header authentication disabled")
	// ErrPasswordPolicy is returned when a new password fails the strength
	// policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when the new password equals the current
	// one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrStoreUnavailable wraps backend failures. Authentication never
	// falls open on it.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is returned when the engine was not built.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockedError carries how long the active lockout still holds. It matches
// ErrAccountLocked under errors.Is.
type LockedError struct {
	RemainingSeconds int64
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for %ds", e.RemainingSeconds)
}

// Is reports whether target is ErrAccountLocked.
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
