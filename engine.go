package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/castellan/authcore/credential"
	"github.com/castellan/authcore/password"
	"github.com/castellan/authcore/token"
)

// Engine is the authentication and session-security core. It owns
// credential records, the lockout state machine, the token service, and
// the authorization gate. Build one with New().
//
// An Engine is safe for concurrent use. Per-account atomicity lives in
// the credential store, not in engine locking.
type Engine struct {
	config     Config
	store      credential.Store
	users      UserDirectory
	groups     GroupDirectory
	hasher     *password.Hasher
	tokens     *token.Manager
	audit      *auditDispatcher
	metrics    *Metrics
	lastActive *lastActiveToucher
}

// Close stops the background workers after draining their queues.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.lastActive != nil {
		e.lastActive.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Authenticate verifies an email/password pair against the credential
// store and drives the lockout state machine.
//
// Unknown emails, deactivated accounts, and wrong passwords all surface
// the merged ErrInvalidCredentials; the audit trail records the real
// reason. A locked account is refused before any hash comparison. By
// default it also surfaces ErrInvalidCredentials; with
// Lockout.ExposeLockState the caller gets ErrAccountLocked carrying the
// remaining seconds.
func (e *Engine) Authenticate(ctx context.Context, email, plaintext string) (*Result, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	email = normalizeEmail(email)
	now := time.Now().Unix()

	rec, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", email, MethodPassword, ErrNotFound, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, e.storeFailure(err)
	}

	// The lock gate runs before anything else. A locked account does no
	// hashing work, so lock state is not observable through timing.
	if rec.Locked(now) {
		return nil, e.refuseLocked(ctx, rec, *rec.LockedUntil-now)
	}
	if rec.LockExpired(now) {
		if _, err := e.store.ClearExpiredLock(ctx, rec.ID, now); err != nil {
			return nil, e.storeFailure(err)
		}
		e.metricInc(MetricLockCleared)
	}

	if !rec.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, rec.ID, email, MethodPassword, ErrAccountInactive, nil)
		return nil, ErrInvalidCredentials
	}

	match, err := e.hasher.Verify(plaintext, rec.PasswordHash)
	if err != nil {
		// A hash that cannot be parsed can never match. The attempt still
		// counts against the lockout threshold.
		log.Printf("authcore: stored hash for %s is unreadable: %v", rec.ID, err)
		match = false
	}

	if !match {
		return nil, e.recordFailedAttempt(ctx, rec, now)
	}

	if err := e.store.RecordSuccess(ctx, rec.ID); err != nil {
		return nil, e.storeFailure(err)
	}
	e.maybeUpgradeHash(ctx, rec, plaintext)

	identity, err := e.resolveIdentity(ctx, rec.ID, email, MethodPassword)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Identity: *identity,
		Method:   MethodPassword,
	}
	if password.Expired(rec.PasswordChangedAt, e.config.Password.MaxAgeDays) {
		result.PasswordExpired = true
		e.metricInc(MetricPasswordExpiredLogin)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, rec.ID, email, MethodPassword, nil, func() map[string]string {
		if !result.PasswordExpired {
			return nil
		}
		return map[string]string{"password_expired": "true"}
	})

	return result, nil
}

func (e *Engine) recordFailedAttempt(ctx context.Context, rec *credential.Record, now int64) error {
	lockSeconds := int64(e.config.Lockout.Duration / time.Second)

	out, err := e.store.RecordFailure(ctx, rec.ID, now, e.config.Lockout.Threshold, lockSeconds)
	if err != nil {
		return e.storeFailure(err)
	}

	if out.AlreadyLocked {
		// A concurrent attempt crossed the threshold first.
		return e.refuseLocked(ctx, rec, out.LockedUntil-now)
	}

	if out.LockedUntil > 0 {
		// This attempt crossed the threshold.
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, auditEventAccountLocked, false, rec.ID, rec.Email, MethodPassword, ErrAccountLocked, func() map[string]string {
			return map[string]string{
				"failed_attempts": strconv.Itoa(out.FailedLoginCount),
				"locked_until":    strconv.FormatInt(out.LockedUntil, 10),
			}
		})
		if e.config.Lockout.ExposeLockState {
			return &LockedError{RemainingSeconds: out.LockedUntil - now}
		}
		return ErrInvalidCredentials
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, rec.ID, rec.Email, MethodPassword, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"failed_attempts": strconv.Itoa(out.FailedLoginCount)}
	})
	return ErrInvalidCredentials
}

func (e *Engine) refuseLocked(ctx context.Context, rec *credential.Record, remaining int64) error {
	if remaining < 0 {
		remaining = 0
	}
	e.metricInc(MetricLockedAttempt)
	lockErr := &LockedError{RemainingSeconds: remaining}
	e.emitAudit(ctx, auditEventLoginFailure, false, rec.ID, rec.Email, MethodPassword, lockErr, func() map[string]string {
		return map[string]string{"remaining_seconds": strconv.FormatInt(remaining, 10)}
	})
	if e.config.Lockout.ExposeLockState {
		return lockErr
	}
	return ErrInvalidCredentials
}

// maybeUpgradeHash transparently rewrites legacy hashes to the current
// parameters after a successful verification. Best effort: a failure
// leaves the working hash in place.
func (e *Engine) maybeUpgradeHash(ctx context.Context, rec *credential.Record, plaintext string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(rec.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := e.hasher.Hash(plaintext)
	if err != nil {
		log.Printf("authcore: hash upgrade for %s failed: %v", rec.ID, err)
		return
	}
	if err := e.store.RehashPassword(ctx, rec.ID, newHash); err != nil {
		log.Printf("authcore: storing upgraded hash for %s failed: %v", rec.ID, err)
		return
	}
	e.metricInc(MetricHashUpgraded)
}

func (e *Engine) resolveIdentity(ctx context.Context, userID, email, method string) (*Identity, error) {
	if e.users == nil {
		return nil, ErrEngineNotReady
	}
	identity, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, e.storeFailure(err)
	}
	if identity == nil {
		// Credential without a profile: orphaned record, refuse.
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, userID, email, method, ErrNotFound, nil)
		return nil, ErrInvalidCredentials
	}
	return identity, nil
}

func (e *Engine) storeFailure(err error) error {
	e.metricInc(MetricStoreError)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
