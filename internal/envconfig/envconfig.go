package envconfig

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/revocation"
	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env is the full server configuration.
type Env struct {
	// Dev enables in-process Redis and the in-memory principal store when
	// no external backends are configured.
	Dev      bool   `env:"DEV" envDefault:"false"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP       HTTPEnv       `envPrefix:"HTTP_"`
	Postgres   PostgresEnv   `envPrefix:"DB_"`
	Redis      RedisEnv      `envPrefix:"REDIS_"`
	JWT        JWTEnv        `envPrefix:"JWT_"`
	Refresh    RefreshEnv    `envPrefix:"REFRESH_"`
	Lockout    LockoutEnv    `envPrefix:"LOCKOUT_"`
	Throttle   ThrottleEnv   `envPrefix:"THROTTLE_"`
	Revocation RevocationEnv `envPrefix:"REVOCATION_"`
	Audit      AuditEnv      `envPrefix:"AUDIT_"`
	Metrics    MetricsEnv    `envPrefix:"METRICS_"`
	Seed       SeedEnv       `envPrefix:"SEED_"`
}

type HTTPEnv struct {
	Addr              string        `env:"ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type PostgresEnv struct {
	// DSN selects the Postgres principal store and refresh table. Empty
	// means in-memory principals with Redis refresh tokens.
	DSN     string `env:"DSN"`
	Migrate bool   `env:"MIGRATE" envDefault:"false"`
}

type RedisEnv struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type JWTEnv struct {
	SigningMethod string        `env:"SIGNING_METHOD" envDefault:"hs256"`
	Secret        string        `env:"SECRET"`
	PrivateKey    string        `env:"PRIVATE_KEY"`
	PublicKey     string        `env:"PUBLIC_KEY"`
	Issuer        string        `env:"ISSUER" envDefault:"authcore"`
	Audience      string        `env:"AUDIENCE"`
	KeyID         string        `env:"KEY_ID"`
	AccessTTL     time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	Leeway        time.Duration `env:"LEEWAY" envDefault:"0s"`
}

type RefreshEnv struct {
	TTL           time.Duration `env:"TTL" envDefault:"168h"`
	Retention     time.Duration `env:"RETENTION" envDefault:"24h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
}

type LockoutEnv struct {
	Threshold int           `env:"THRESHOLD" envDefault:"5"`
	Duration  time.Duration `env:"DURATION" envDefault:"15m"`
}

// ThrottleEnv limits failed logins per client address, on top of the
// per-account lockout.
type ThrottleEnv struct {
	Enabled     bool          `env:"ENABLED" envDefault:"true"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"20"`
	Window      time.Duration `env:"WINDOW" envDefault:"10m"`
}

type RevocationEnv struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	Policy  string        `env:"POLICY" envDefault:"fail_open"`
	Buffer  time.Duration `env:"BUFFER" envDefault:"300s"`
}

type AuditEnv struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`
	// Sink is "slog" or "postgres". Postgres requires DB_DSN.
	Sink   string `env:"SINK" envDefault:"slog"`
	Buffer int    `env:"BUFFER" envDefault:"1024"`
}

type MetricsEnv struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

// SeedEnv creates one principal at startup in dev mode.
type SeedEnv struct {
	Email    string   `env:"EMAIL"`
	Password string   `env:"PASSWORD"`
	Roles    []string `env:"ROLES" envDefault:"admin"`
}

// Load reads files (default ".env") when present, then parses the
// environment. Missing files are not an error.
func Load(files ...string) (Env, error) {
	if err := godotenv.Load(files...); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Env{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize normalizes enumerations loaded from env.
func (e *Env) Sanitize() {
	e.JWT.SigningMethod = strings.ToLower(strings.TrimSpace(e.JWT.SigningMethod))
	e.Audit.Sink = strings.ToLower(strings.TrimSpace(e.Audit.Sink))
	e.LogLevel = strings.ToLower(strings.TrimSpace(e.LogLevel))
	if e.Metrics.Path == "" || !strings.HasPrefix(e.Metrics.Path, "/") {
		e.Metrics.Path = "/metrics"
	}
}

// EngineConfig maps e onto authcore.DefaultConfig. Ed25519 keys are
// base64-encoded raw keys or seeds.
func (e *Env) EngineConfig() (authcore.Config, error) {
	cfg := authcore.DefaultConfig()

	cfg.JWT.SigningMethod = e.JWT.SigningMethod
	cfg.JWT.Issuer = e.JWT.Issuer
	cfg.JWT.Audience = e.JWT.Audience
	cfg.JWT.KeyID = e.JWT.KeyID
	cfg.JWT.AccessTTL = e.JWT.AccessTTL
	cfg.JWT.Leeway = e.JWT.Leeway
	switch e.JWT.SigningMethod {
	case "ed25519":
		priv, err := base64.StdEncoding.DecodeString(e.JWT.PrivateKey)
		if err != nil {
			return cfg, fmt.Errorf("JWT_PRIVATE_KEY: %w", err)
		}
		pub, err := base64.StdEncoding.DecodeString(e.JWT.PublicKey)
		if err != nil {
			return cfg, fmt.Errorf("JWT_PUBLIC_KEY: %w", err)
		}
		cfg.JWT.PrivateKey, cfg.JWT.PublicKey = priv, pub
	default:
		cfg.JWT.PrivateKey = []byte(e.JWT.Secret)
	}

	cfg.Refresh.TTL = e.Refresh.TTL
	cfg.Refresh.Retention = e.Refresh.Retention
	cfg.Refresh.SweepInterval = e.Refresh.SweepInterval

	cfg.Lockout.Threshold = e.Lockout.Threshold
	cfg.Lockout.Duration = e.Lockout.Duration

	policy, err := revocation.ParsePolicy(e.Revocation.Policy)
	if err != nil {
		return cfg, fmt.Errorf("REVOCATION_POLICY: %w", err)
	}
	cfg.Revocation.Enabled = e.Revocation.Enabled
	cfg.Revocation.OnUnavailable = policy
	cfg.Revocation.Buffer = e.Revocation.Buffer

	cfg.Audit.Enabled = e.Audit.Enabled
	cfg.Audit.BufferSize = e.Audit.Buffer
	cfg.Metrics.Enabled = e.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = e.Metrics.Enabled

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Logger returns a JSON slog logger at LogLevel.
func (e *Env) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
