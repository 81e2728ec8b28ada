package authcore

import (
	"database/sql"
	"errors"

	"github.com/castellan/authcore/credential"
	"github.com/castellan/authcore/password"
	"github.com/castellan/authcore/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Configure it with the With* methods and
// call Build once.
type Builder struct {
	config Config

	redis    redis.UniversalClient
	postgres *sql.DB
	store    credential.Store

	users     UserDirectory
	groups    GroupDirectory
	auditSink AuditSink

	built bool
}

// New starts a Builder with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. The value is copied; later
// mutation of cfg does not reach the engine.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis selects the Redis credential store backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPostgres selects the Postgres credential store backend. The handle
// is expected to use the pgx stdlib driver.
func (b *Builder) WithPostgres(db *sql.DB) *Builder {
	b.postgres = db
	return b
}

// WithStore injects a custom credential store, overriding the Redis and
// Postgres options.
func (b *Builder) WithStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithUserDirectory wires the profile collaborator. Required.
func (b *Builder) WithUserDirectory(users UserDirectory) *Builder {
	b.users = users
	return b
}

// WithGroupDirectory wires the group membership collaborator used by the
// capability gate. Optional; without it capability checks always deny.
func (b *Builder) WithGroupDirectory(groups GroupDirectory) *Builder {
	b.groups = groups
	return b
}

// WithAuditSink sets the destination for audit events. Only consulted
// when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the backends, and returns the
// Engine. A Builder can build at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	switch {
	case store != nil:
	case b.redis != nil:
		store = credential.NewRedisStore(b.redis, cfg.Store.RedisPrefix)
	case b.postgres != nil:
		store = credential.NewPostgresStore(b.postgres)
	default:
		return nil, errors.New("credential store required: provide redis, postgres, or a custom store")
	}

	if b.users == nil {
		return nil, errors.New("user directory required")
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		TTL:           cfg.Token.TTL,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		Secret:        cloneBytes(cfg.Token.Secret),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:  cfg,
		store:   store,
		users:   b.users,
		groups:  b.groups,
		hasher:  hasher,
		tokens:  tokens,
		metrics: NewMetrics(cfg.Metrics),
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.lastActive = newLastActiveToucher(b.users, cfg.Audit.BufferSize)

	b.built = true

	return engine, nil
}
