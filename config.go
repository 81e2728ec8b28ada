package authcore

import (
	"errors"
	"strings"
	"time"
)

// Config is the full engine configuration. Instances are treated as
// immutable once the engine is built.
type Config struct {
	Token         TokenConfig
	Password      PasswordConfig
	Lockout       LockoutConfig
	APIKey        APIKeyConfig
	TrustedHeader TrustedHeaderConfig
	Authorization AuthorizationConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Store         StoreConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the bearer token service.
type TokenConfig struct {
	TTL           time.Duration // default lifetime for issued tokens
	SigningMethod string        // "hs256" (default) or "ed25519"
	Secret        []byte
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig carries argon2id parameters and the expiry policy.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
	MaxAgeDays     int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls the failed-login lockout state machine.
//
// ExposeLockState makes Authenticate return ErrAccountLocked (with
// remaining seconds) instead of the merged ErrInvalidCredentials. The
// audit trail always records the real reason either way.
type LockoutConfig struct {
	Threshold       int
	Duration        time.Duration
	ExposeLockState bool
}

/*
====================================
API KEY CONFIG
====================================
*/

// APIKeyConfig controls API key authentication.
type APIKeyConfig struct {
	Enabled           bool
	RestrictEndpoints bool
	AllowedEndpoints  []string
}

// TrustedHeaderConfig controls password-less authentication from a trusted
// reverse proxy. Off by default.
type TrustedHeaderConfig struct {
	Enabled bool
}

/*
====================================
AUTHORIZATION CONFIG
====================================
*/

// AuthorizationConfig names the groups that grant capability tags and
// bounds group directory calls.
type AuthorizationConfig struct {
	AuditGroup         string
	SecurityAdminGroup string
	DirectoryTimeout   time.Duration
}

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// StoreConfig carries backend-neutral store settings.
type StoreConfig struct {
	RedisPrefix string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Callers must still
// supply token signing material before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			TTL:           24 * time.Hour,
			SigningMethod: "hs256",
			Leeway:        0,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
			MaxAgeDays:     90,
		},
		Lockout: LockoutConfig{
			Threshold:       5,
			Duration:        30 * time.Minute,
			ExposeLockState: false,
		},
		APIKey: APIKeyConfig{
			Enabled:           true,
			RestrictEndpoints: false,
		},
		TrustedHeader: TrustedHeaderConfig{
			Enabled: false,
		},
		Authorization: AuthorizationConfig{
			AuditGroup:         "审计",
			SecurityAdminGroup: "安全管理员",
			DirectoryTimeout:   2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		Store: StoreConfig{
			RedisPrefix: "ac:",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.APIKey.AllowedEndpoints = cloneStrings(cfg.APIKey.AllowedEndpoints)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internal consistency. It is called
// by Builder.Build before any dependency is wired.
func (c *Config) Validate() error {
	// Token
	switch strings.ToLower(c.Token.SigningMethod) {
	case "hs256":
		if len(c.Token.Secret) < 32 {
			return errors.New("hs256 requires Secret of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported token signing method")
	}
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxAgeDays < 0 {
		return errors.New("Password MaxAgeDays must be >= 0")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// API key
	if c.APIKey.RestrictEndpoints && !c.APIKey.Enabled {
		return errors.New("APIKey RestrictEndpoints requires APIKey Enabled")
	}
	if c.APIKey.RestrictEndpoints && len(c.APIKey.AllowedEndpoints) == 0 {
		return errors.New("APIKey RestrictEndpoints requires AllowedEndpoints")
	}

	// Authorization
	if c.Authorization.AuditGroup == "" {
		return errors.New("Authorization AuditGroup must not be empty")
	}
	if c.Authorization.SecurityAdminGroup == "" {
		return errors.New("Authorization SecurityAdminGroup must not be empty")
	}
	if c.Authorization.DirectoryTimeout < 0 {
		return errors.New("Authorization DirectoryTimeout must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
