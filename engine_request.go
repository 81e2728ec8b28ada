package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/castellan/authcore/credential"
	"github.com/castellan/authcore/token"
)

// IssueToken signs a bearer token for the given account. A non-positive
// ttl falls back to the configured Token.TTL.
func (e *Engine) IssueToken(userID string, ttl time.Duration) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	return e.tokens.Issue(userID, ttl)
}

// ValidateToken checks a bearer token's signature and expiry and returns
// the account id it was issued for. The claims are never consulted before
// the signature verifies.
func (e *Engine) ValidateToken(raw string) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	claims, err := e.tokens.Validate(raw)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		if errors.Is(err, token.ErrExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	e.metricInc(MetricTokenValidated)
	return claims.UserID, nil
}

// IssueAPIKey rotates the account's API key and returns the new plaintext
// key. Any previously issued key stops working.
func (e *Engine) IssueAPIKey(ctx context.Context, userID string) (string, error) {
	if e == nil || e.users == nil {
		return "", ErrEngineNotReady
	}
	key := token.NewAPIKey()
	if err := e.users.SetAPIKey(ctx, userID, key); err != nil {
		return "", e.storeFailure(err)
	}
	e.emitAudit(ctx, auditEventAPIKeyIssued, true, userID, "", "", nil, nil)
	return key, nil
}

// AuthenticateByAPIKey resolves an account from an opaque API key. The
// lookup is exact match; API keys never interact with the lockout state
// machine, but a deactivated account is still refused.
func (e *Engine) AuthenticateByAPIKey(ctx context.Context, apiKey string) (*Result, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.APIKey.Enabled {
		return nil, ErrAPIKeyDisabled
	}

	identity, err := e.users.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, e.storeFailure(err)
	}
	if identity == nil {
		e.emitAudit(ctx, auditEventAPIKeyLogin, false, "", "", MethodAPIKey, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}
	if err := e.requireActive(ctx, identity, MethodAPIKey, auditEventAPIKeyLogin); err != nil {
		return nil, err
	}

	e.metricInc(MetricAPIKeyLogin)
	e.emitAudit(ctx, auditEventAPIKeyLogin, true, identity.ID, identity.Email, MethodAPIKey, nil, nil)
	return &Result{Identity: *identity, Method: MethodAPIKey}, nil
}

// AuthenticateByTrustedHeader resolves an account from an email asserted
// by a trusted reverse proxy. No password is checked; the feature is off
// unless explicitly enabled.
func (e *Engine) AuthenticateByTrustedHeader(ctx context.Context, email string) (*Result, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.TrustedHeader.Enabled {
		return nil, ErrTrustedHeaderDisabled
	}
	email = normalizeEmail(email)

	identity, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, e.storeFailure(err)
	}
	if identity == nil {
		e.emitAudit(ctx, auditEventTrustedHeaderLogin, false, "", email, MethodTrustedHeader, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}
	if err := e.requireActive(ctx, identity, MethodTrustedHeader, auditEventTrustedHeaderLogin); err != nil {
		return nil, err
	}

	e.metricInc(MetricTrustedHeaderLogin)
	e.emitAudit(ctx, auditEventTrustedHeaderLogin, true, identity.ID, email, MethodTrustedHeader, nil, nil)
	return &Result{Identity: *identity, Method: MethodTrustedHeader}, nil
}

// CurrentUser resolves the account behind a raw request credential. The
// credential kind is decided structurally: anything carrying the API key
// prefix is treated as an API key, everything else as a bearer token.
//
// On success the account's last-active timestamp is refreshed
// asynchronously; the request path never waits on it.
func (e *Engine) CurrentUser(ctx context.Context, rawCredential string) (*Result, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	if token.KindOf(rawCredential) == token.KindAPIKey {
		if err := e.checkAPIKeyEndpoint(ctx); err != nil {
			return nil, err
		}
		result, err := e.AuthenticateByAPIKey(ctx, rawCredential)
		if err != nil {
			return nil, err
		}
		e.lastActive.Touch(result.Identity.ID)
		return result, nil
	}

	userID, err := e.ValidateToken(rawCredential)
	if err != nil {
		return nil, err
	}
	identity, err := e.resolveIdentity(ctx, userID, "", MethodToken)
	if err != nil {
		return nil, err
	}
	if err := e.requireActive(ctx, identity, MethodToken, auditEventLoginFailure); err != nil {
		return nil, err
	}
	e.lastActive.Touch(identity.ID)
	return &Result{Identity: *identity, Method: MethodToken}, nil
}

// checkAPIKeyEndpoint enforces the endpoint allow-list for API key
// requests. A path is allowed on exact match or as a sub-path of an
// allowed endpoint.
func (e *Engine) checkAPIKeyEndpoint(ctx context.Context) error {
	if !e.config.APIKey.RestrictEndpoints {
		return nil
	}
	path := requestPathFromContext(ctx)
	for _, allowed := range e.config.APIKey.AllowedEndpoints {
		if path == allowed || strings.HasPrefix(path, allowed+"/") {
			return nil
		}
	}
	e.metricInc(MetricAccessDenied)
	e.emitAudit(ctx, auditEventAccessDenied, false, "", "", MethodAPIKey, ErrAccessProhibited, func() map[string]string {
		return map[string]string{"path": path}
	})
	return ErrAccessProhibited
}

// requireActive refuses identities whose credential record is
// deactivated. The active flag lives on the credential record, so this is
// one store read.
func (e *Engine) requireActive(ctx context.Context, identity *Identity, method, auditEvent string) error {
	if e.store == nil {
		return ErrEngineNotReady
	}
	rec, err := e.store.GetByID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			e.emitAudit(ctx, auditEvent, false, identity.ID, identity.Email, method, ErrNotFound, nil)
			return ErrInvalidCredentials
		}
		return e.storeFailure(err)
	}
	if !rec.Active {
		e.emitAudit(ctx, auditEvent, false, identity.ID, identity.Email, method, ErrAccountInactive, nil)
		return ErrInvalidCredentials
	}
	return nil
}
