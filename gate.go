package authcore

import (
	"context"
	"log"
)

// IsVerified reports whether the identity carries a role that completed
// verification.
func IsVerified(identity Identity) bool {
	return identity.Role == RoleUser || identity.Role == RoleAdmin
}

// IsAdmin reports whether the identity is an administrator.
func IsAdmin(identity Identity) bool {
	return identity.Role == RoleAdmin
}

// RequireVerified gates access to surfaces open to any verified account.
func (e *Engine) RequireVerified(ctx context.Context, identity Identity) error {
	if IsVerified(identity) {
		return nil
	}
	return e.denyAccess(ctx, identity, "verified")
}

// RequireAdmin gates access to administrator surfaces. Admin status comes
// from the role alone, never from group membership.
func (e *Engine) RequireAdmin(ctx context.Context, identity Identity) error {
	if IsAdmin(identity) {
		return nil
	}
	return e.denyAccess(ctx, identity, "admin")
}

// RequireAudit gates access to audit surfaces. Membership in the
// configured audit group is the only thing that grants it; an
// administrator role does not.
func (e *Engine) RequireAudit(ctx context.Context, identity Identity) error {
	return e.RequireCapability(ctx, identity, CapabilityAudit)
}

// RequireSecurityAdmin gates access to security administration surfaces.
func (e *Engine) RequireSecurityAdmin(ctx context.Context, identity Identity) error {
	return e.RequireCapability(ctx, identity, CapabilitySecurityAdmin)
}

// RequireCapability resolves the identity's capability tags and denies
// unless cap is among them.
func (e *Engine) RequireCapability(ctx context.Context, identity Identity, cap Capability) error {
	caps, err := e.Capabilities(ctx, identity.ID)
	if err != nil {
		// Fail closed: a directory error or timeout never grants access.
		log.Printf("authcore: capability resolution for %s failed: %v", identity.ID, err)
		return e.denyAccess(ctx, identity, string(cap))
	}
	for _, c := range caps {
		if c == cap {
			return nil
		}
	}
	return e.denyAccess(ctx, identity, string(cap))
}

// Capabilities resolves capability tags from group membership in one
// directory call. Group names are matched exactly against the configured
// AuditGroup and SecurityAdminGroup.
func (e *Engine) Capabilities(ctx context.Context, userID string) ([]Capability, error) {
	if e == nil || e.groups == nil {
		return nil, ErrEngineNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if e.config.Authorization.DirectoryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Authorization.DirectoryTimeout)
		defer cancel()
	}

	names, err := e.groups.GroupNames(ctx, userID)
	if err != nil {
		return nil, err
	}

	var caps []Capability
	for _, name := range names {
		switch name {
		case e.config.Authorization.AuditGroup:
			caps = append(caps, CapabilityAudit)
		case e.config.Authorization.SecurityAdminGroup:
			caps = append(caps, CapabilitySecurityAdmin)
		}
	}
	return caps, nil
}

func (e *Engine) denyAccess(ctx context.Context, identity Identity, surface string) error {
	e.metricInc(MetricAccessDenied)
	e.emitAudit(ctx, auditEventAccessDenied, false, identity.ID, identity.Email, "", ErrAccessProhibited, func() map[string]string {
		return map[string]string{"surface": surface}
	})
	return ErrAccessProhibited
}
