package authcore

import "context"

// Role values carried on an Identity. Anything outside this set is
// treated as unverified by the gate.
const (
	RolePending = "pending"
	RoleUser    = "user"
	RoleAdmin   = "admin"
)

// Method tags recorded on a Result and in audit events.
const (
	MethodPassword      = "password"
	MethodAPIKey        = "api_key"
	MethodTrustedHeader = "trusted_header"
	MethodToken         = "token"
)

// Capability is a typed authorization tag resolved from group membership.
type Capability string

const (
	// CapabilityAudit grants access to audit surfaces.
	CapabilityAudit Capability = "audit"
	// CapabilitySecurityAdmin grants access to security administration
	// surfaces.
	CapabilitySecurityAdmin Capability = "security_admin"
)

// Identity is the profile record resolved from the user directory after a
// credential check passes. It never carries password material.
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  string
}

// Result is returned by the authentication entry points.
//
// PasswordExpired reports that the password is past its maximum age. It
// never blocks the login; callers decide whether to force a change.
type Result struct {
	Identity        Identity
	Method          string
	PasswordExpired bool
}

// UserDirectory resolves and maintains user profiles. It is the
// collaborator boundary to the application's user database; the engine
// owns credentials, the directory owns everything else.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*Identity, error)
	Create(ctx context.Context, identity Identity) error
	Delete(ctx context.Context, id string) error
	UpdateEmail(ctx context.Context, id, email string) error
	SetAPIKey(ctx context.Context, id, apiKey string) error
	TouchLastActive(ctx context.Context, id string, at int64) error
}

// GroupDirectory reports the group names an account belongs to. Errors and
// timeouts deny capability checks, never grant them.
type GroupDirectory interface {
	GroupNames(ctx context.Context, userID string) ([]string, error)
}
