package authcore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/internal/random"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. It is single-use: configure it during
// initialization, call Build once, and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	principals   PrincipalStore
	refreshStore refresh.Store
	hasher       password.Hasher
	auditSink    AuditSink
	logger       *slog.Logger
	now          func() time.Time

	permissions []string
	roles       []Role

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for revocation and, unless
// [Builder.WithRefreshStore] is given, refresh tokens.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithPrincipalStore(store PrincipalStore) *Builder {
	b.principals = store
	return b
}

// WithRefreshStore overrides the default Redis refresh store, for example
// with [refresh.NewSQLStore].
func (b *Builder) WithRefreshStore(store refresh.Store) *Builder {
	b.refreshStore = store
	return b
}

// WithPasswordHasher overrides the default Argon2id hasher (which also
// verifies legacy bcrypt hashes).
func (b *Builder) WithPasswordHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for every time-dependent decision.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithPermissions registers permission names that guards may check.
func (b *Builder) WithPermissions(names ...string) *Builder {
	b.permissions = append(b.permissions, names...)
	return b
}

// WithRoles registers every permission granted by roles.
func (b *Builder) WithRoles(roles ...Role) *Builder {
	b.roles = append(b.roles, roles...)
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.principals == nil {
		return nil, errors.New("principal store required")
	}
	if b.redis == nil && cfg.Revocation.Enabled {
		return nil, errors.New("revocation requires redis client")
	}
	if b.redis == nil && b.refreshStore == nil {
		return nil, errors.New("refresh store or redis client required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- PERMISSION REGISTRY --------
	registry, err := permission.NewRegistry(b.permissions...)
	if err != nil {
		return nil, err
	}
	if err := registry.RegisterRoles(b.roles); err != nil {
		return nil, err
	}
	registry.Freeze()

	engine := &Engine{
		config:     cloneConfig(cfg),
		logger:     logger,
		now:        now,
		principals: b.principals,
		registry:   registry,
		metrics: metrics.New(metrics.Config{
			Enabled:                 cfg.Metrics.Enabled,
			EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
		}),
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, b.auditSink, logger.With("component", "audit"))

	// -------- STORES --------
	engine.refresh = b.refreshStore
	if engine.refresh == nil {
		engine.refresh = refresh.NewRedisStore(b.redis, refresh.Config{
			TTL:       cfg.Refresh.TTL,
			Retention: cfg.Refresh.Retention,
			Prefix:    cfg.Refresh.RedisPrefix,
			Now:       now,
		})
	}

	engine.revocation = revocation.NewRedisStore(b.redis, revocation.Config{
		Enabled:       cfg.Revocation.Enabled,
		Prefix:        cfg.Revocation.RedisPrefix,
		Buffer:        cfg.Revocation.Buffer,
		Timeout:       cfg.Timeouts.Revocation,
		OnUnavailable: cfg.Revocation.OnUnavailable,
		Logger:        logger.With("component", "revocation"),
		Now:           now,
		OnDegrade: func(string) {
			engine.metricInc(MetricRevocationUnavailable)
		},
	})

	// -------- CRYPTO --------
	hasher := b.hasher
	if hasher == nil {
		argon, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		legacy, err := password.NewBcrypt(cfg.Password.BcryptCost)
		if err != nil {
			return nil, err
		}
		hasher = password.NewMulti(argon, legacy)
	}
	engine.hasher = hasher

	seed, err := random.NewToken()
	if err != nil {
		return nil, err
	}
	engine.dummyHash, err = hasher.Hash("dummy-" + seed)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}

	codec, err := jwt.NewCodec(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		KeyID:         cfg.JWT.KeyID,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.codec = codec

	engine.initFlows()
	b.built = true

	return engine, nil
}
