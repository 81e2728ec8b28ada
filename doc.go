// Package authcore is an embeddable authentication and session-security
// core: credential storage, password policy, a failed-login lockout state
// machine, a bearer-token and API-key service, and an authorization gate.
//
// The engine is assembled with the builder:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(client).
//		WithUserDirectory(users).
//		WithGroupDirectory(groups).
//		Build()
//
// Transport, routing, and user profile storage are collaborators supplied
// by the caller; the engine owns everything between "raw credential in"
// and "authorized identity out".
//
// Login failures deliberately collapse to a single error. Unknown
// account, wrong password, deactivated account, and (by default) an
// active lockout all return ErrInvalidCredentials, so the API cannot be
// used to enumerate accounts. The audit trail keeps the distinction.
package authcore
