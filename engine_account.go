package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/castellan/authcore/credential"
	"github.com/castellan/authcore/password"
	"github.com/google/uuid"
)

// CreateAccountRequest is the input for Engine.CreateAccount. Role
// defaults to RolePending when empty.
type CreateAccountRequest struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// CreateAccount provisions a credential record and its user profile as
// one unit: when the profile cannot be created, the credential record is
// rolled back so no half-provisioned account can authenticate.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Identity, error) {
	if e == nil || e.store == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if ok, reason := password.ValidateStrength(req.Password); !ok {
		return nil, fmt.Errorf("%w: %s", ErrPasswordPolicy, reason)
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = RolePending
	}

	now := time.Now().Unix()
	rec := &credential.Record{
		ID:                uuid.NewString(),
		Email:             email,
		PasswordHash:      hash,
		Active:            true,
		PasswordChangedAt: &now,
	}

	if err := e.store.Create(ctx, rec); err != nil {
		if errors.Is(err, credential.ErrDuplicateEmail) {
			e.emitAudit(ctx, auditEventAccountCreated, false, "", email, "", ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		return nil, e.storeFailure(err)
	}

	identity := Identity{
		ID:    rec.ID,
		Email: email,
		Name:  req.Name,
		Role:  role,
	}
	if err := e.users.Create(ctx, identity); err != nil {
		// Roll the credential back so the two records stay paired.
		if delErr := e.store.Delete(ctx, rec.ID); delErr != nil {
			log.Printf("authcore: rollback of credential %s failed: %v", rec.ID, delErr)
		}
		return nil, e.storeFailure(err)
	}

	e.emitAudit(ctx, auditEventAccountCreated, true, rec.ID, email, "", nil, func() map[string]string {
		return map[string]string{"role": role}
	})

	return &identity, nil
}

// DeleteAccount removes the profile first and the credential record
// second. A credential without a profile cannot resolve an identity; the
// reverse ordering could leave a profile reachable without credentials.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) error {
	if e == nil || e.store == nil || e.users == nil {
		return ErrEngineNotReady
	}

	if err := e.users.Delete(ctx, userID); err != nil {
		return e.storeFailure(err)
	}
	if err := e.store.Delete(ctx, userID); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return ErrNotFound
		}
		return e.storeFailure(err)
	}

	e.emitAudit(ctx, auditEventAccountDeleted, true, userID, "", "", nil, nil)
	return nil
}

// ChangePassword verifies the current password, applies the strength
// policy to the new one, and rejects reuse of the current password. A
// successful change stamps the change time and resets the lockout state.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	rec, err := e.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return ErrNotFound
		}
		return e.storeFailure(err)
	}

	match, err := e.hasher.Verify(oldPassword, rec.PasswordHash)
	if err != nil || !match {
		e.emitAudit(ctx, auditEventPasswordChange, false, userID, rec.Email, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if newPassword == oldPassword {
		e.emitAudit(ctx, auditEventPasswordChange, false, userID, rec.Email, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}
	if ok, reason := password.ValidateStrength(newPassword); !ok {
		e.emitAudit(ctx, auditEventPasswordChange, false, userID, rec.Email, "", ErrPasswordPolicy, nil)
		return fmt.Errorf("%w: %s", ErrPasswordPolicy, reason)
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePassword(ctx, userID, hash, time.Now().Unix()); err != nil {
		return e.storeFailure(err)
	}

	e.metricInc(MetricPasswordChange)
	e.emitAudit(ctx, auditEventPasswordChange, true, userID, rec.Email, "", nil, nil)
	return nil
}

// UpdateEmail changes the account's email in the credential store and the
// user directory. A directory failure reverts the store so both sides
// keep the same address.
func (e *Engine) UpdateEmail(ctx context.Context, userID, newEmail string) error {
	if e == nil || e.store == nil || e.users == nil {
		return ErrEngineNotReady
	}
	newEmail = normalizeEmail(newEmail)

	rec, err := e.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return ErrNotFound
		}
		return e.storeFailure(err)
	}
	oldEmail := rec.Email

	if err := e.store.UpdateEmail(ctx, userID, newEmail); err != nil {
		if errors.Is(err, credential.ErrDuplicateEmail) {
			return ErrAccountExists
		}
		return e.storeFailure(err)
	}
	if err := e.users.UpdateEmail(ctx, userID, newEmail); err != nil {
		if revertErr := e.store.UpdateEmail(ctx, userID, oldEmail); revertErr != nil {
			log.Printf("authcore: email revert for %s failed: %v", userID, revertErr)
		}
		return e.storeFailure(err)
	}

	e.emitAudit(ctx, auditEventEmailChange, true, userID, newEmail, "", nil, func() map[string]string {
		return map[string]string{"previous": oldEmail}
	})
	return nil
}

// SetActive flips the account's activation flag. Deactivation takes
// effect on the next authentication attempt.
func (e *Engine) SetActive(ctx context.Context, userID string, active bool) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.store.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return ErrNotFound
		}
		return e.storeFailure(err)
	}
	e.emitAudit(ctx, auditEventAccountStatusChange, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"active": fmt.Sprintf("%t", active)}
	})
	return nil
}
