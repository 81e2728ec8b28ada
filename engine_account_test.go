package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/castellan/authcore/credential"
)

func TestCreateAccountDefaults(t *testing.T) {
	engine, _, dir := newTestEngine(t, nil)
	ctx := context.Background()

	identity, err := engine.CreateAccount(ctx, CreateAccountRequest{
		Email:    "New@Example.com",
		Password: goodPassword,
		Name:     "New User",
	})
	if err != nil {
		t.Fatalf("CreateAccount error: %v", err)
	}
	if identity.Role != RolePending {
		t.Fatalf("default role = %s, want %s", identity.Role, RolePending)
	}
	if identity.Email != "new@example.com" {
		t.Fatalf("email not normalized: %s", identity.Email)
	}

	rec, err := engine.store.GetByID(ctx, identity.ID)
	if err != nil {
		t.Fatalf("credential record missing: %v", err)
	}
	if !rec.Active || rec.PasswordChangedAt == nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if strings.Contains(rec.PasswordHash, goodPassword) {
		t.Fatal("hash must be opaque")
	}
	if _, ok := dir.byID[identity.ID]; !ok {
		t.Fatal("profile missing from directory")
	}
}

func TestCreateAccountWeakPassword(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	_, err := engine.CreateAccount(context.Background(), CreateAccountRequest{
		Email:    "weak@example.com",
		Password: "abcd1234",
	})
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	mustCreateAccount(t, engine, "alice@example.com", goodPassword)

	_, err := engine.CreateAccount(ctx, CreateAccountRequest{
		Email:    "alice@example.com",
		Password: goodPassword,
	})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestCreateAccountRollsBackOnProfileFailure(t *testing.T) {
	engine, _, dir := newTestEngine(t, nil)
	ctx := context.Background()

	dir.createErr = errors.New("directory down")

	_, err := engine.CreateAccount(ctx, CreateAccountRequest{
		Email:    "orphan@example.com",
		Password: goodPassword,
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	// No half-provisioned credential may remain.
	if _, err := engine.store.GetByEmail(ctx, "orphan@example.com"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("credential not rolled back: %v", err)
	}
}

func TestDeleteAccountRemovesBothSides(t *testing.T) {
	engine, _, dir := newTestEngine(t, nil)
	ctx := context.Background()

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)

	if err := engine.DeleteAccount(ctx, identity.ID); err != nil {
		t.Fatalf("DeleteAccount error: %v", err)
	}
	if _, ok := dir.byID[identity.ID]; ok {
		t.Fatal("profile not deleted")
	}
	if _, err := engine.store.GetByID(ctx, identity.ID); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("credential not deleted: %v", err)
	}

	if err := engine.DeleteAccount(ctx, identity.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: expected ErrNotFound, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)
	const newPassword = "Efgh456!"

	if err := engine.ChangePassword(ctx, identity.ID, "Wrong123!", newPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong old password: expected ErrInvalidCredentials, got %v", err)
	}
	if err := engine.ChangePassword(ctx, identity.ID, goodPassword, goodPassword); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("reuse: expected ErrPasswordReuse, got %v", err)
	}
	if err := engine.ChangePassword(ctx, identity.ID, goodPassword, "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("weak: expected ErrPasswordPolicy, got %v", err)
	}

	if err := engine.ChangePassword(ctx, identity.ID, goodPassword, newPassword); err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}

	if _, err := engine.Authenticate(ctx, "alice@example.com", goodPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	result, err := engine.Authenticate(ctx, "alice@example.com", newPassword)
	if err != nil {
		t.Fatalf("Authenticate with new password error: %v", err)
	}
	if result.PasswordExpired {
		t.Fatal("freshly changed password must not be expired")
	}
}

func TestChangePasswordResetsLockout(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)

	for i := 0; i < 3; i++ {
		_, _ = engine.Authenticate(ctx, "alice@example.com", "Wrong123!")
	}
	if err := engine.ChangePassword(ctx, identity.ID, goodPassword, "Efgh456!"); err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}

	rec, _ := engine.store.GetByID(ctx, identity.ID)
	if rec.FailedLoginCount != 0 || rec.LockedUntil != nil {
		t.Fatalf("password change must reset lockout state: %+v", rec)
	}
}

func TestUpdateEmail(t *testing.T) {
	engine, _, dir := newTestEngine(t, nil)
	ctx := context.Background()

	identity := mustCreateAccount(t, engine, "alice@example.com", goodPassword)
	mustCreateAccount(t, engine, "bob@example.com", goodPassword)

	if err := engine.UpdateEmail(ctx, identity.ID, "bob@example.com"); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("duplicate email: expected ErrAccountExists, got %v", err)
	}

	if err := engine.UpdateEmail(ctx, identity.ID, "Alice2@Example.com"); err != nil {
		t.Fatalf("UpdateEmail error: %v", err)
	}
	if dir.byID[identity.ID].Email != "alice2@example.com" {
		t.Fatalf("directory email not updated: %s", dir.byID[identity.ID].Email)
	}

	if _, err := engine.Authenticate(ctx, "alice2@example.com", goodPassword); err != nil {
		t.Fatalf("Authenticate with new email error: %v", err)
	}
	if _, err := engine.Authenticate(ctx, "alice@example.com", goodPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old email must stop resolving, got %v", err)
	}
}
