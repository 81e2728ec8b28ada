package authcore

import (
	"bytes"
	"crypto/ed25519"
	"strings"
	"testing"
)

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.Token.Secret = bytes.Repeat([]byte("s"), 32)
	return cfg
}

func TestDefaultConfigValidatesWithSecret(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	cfg := defaultConfig()
	cfg.Token.SigningMethod = "ed25519"
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	if err := cfg.Validate(); err != nil {
		t.Fatalf("ed25519 config should validate: %v", err)
	}

	cfg.Token.PublicKey = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing public key must be rejected")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short hs256 secret", func(c *Config) { c.Token.Secret = []byte("too-short") }, "32 bytes"},
		{"unknown signing method", func(c *Config) { c.Token.SigningMethod = "rs256" }, "signing method"},
		{"zero token ttl", func(c *Config) { c.Token.TTL = 0 }, "TTL"},
		{"negative leeway", func(c *Config) { c.Token.Leeway = -1 }, "Leeway"},
		{"low argon2 memory", func(c *Config) { c.Password.Memory = 1024 }, "Memory"},
		{"zero argon2 time", func(c *Config) { c.Password.Time = 0 }, "Time"},
		{"zero parallelism", func(c *Config) { c.Password.Parallelism = 0 }, "Parallelism"},
		{"short salt", func(c *Config) { c.Password.SaltLength = 8 }, "SaltLength"},
		{"short key", func(c *Config) { c.Password.KeyLength = 8 }, "KeyLength"},
		{"negative max age", func(c *Config) { c.Password.MaxAgeDays = -1 }, "MaxAgeDays"},
		{"zero lockout threshold", func(c *Config) { c.Lockout.Threshold = 0 }, "Threshold"},
		{"zero lockout duration", func(c *Config) { c.Lockout.Duration = 0 }, "Duration"},
		{"restricted endpoints while disabled", func(c *Config) {
			c.APIKey.Enabled = false
			c.APIKey.RestrictEndpoints = true
			c.APIKey.AllowedEndpoints = []string{"/api/models"}
		}, "Enabled"},
		{"restricted endpoints without allow list", func(c *Config) {
			c.APIKey.RestrictEndpoints = true
			c.APIKey.AllowedEndpoints = nil
		}, "AllowedEndpoints"},
		{"empty audit group", func(c *Config) { c.Authorization.AuditGroup = "" }, "AuditGroup"},
		{"empty security admin group", func(c *Config) { c.Authorization.SecurityAdminGroup = "" }, "SecurityAdminGroup"},
		{"audit enabled with zero buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, "BufferSize"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCloneConfigIsolatesSlices(t *testing.T) {
	cfg := validTestConfig()
	cfg.APIKey.AllowedEndpoints = []string{"/api/models"}

	clone := cloneConfig(cfg)
	cfg.Token.Secret[0] = 'x'
	cfg.APIKey.AllowedEndpoints[0] = "/changed"

	if clone.Token.Secret[0] == 'x' {
		t.Fatal("clone shares the secret slice")
	}
	if clone.APIKey.AllowedEndpoints[0] != "/api/models" {
		t.Fatal("clone shares the endpoint slice")
	}
}
