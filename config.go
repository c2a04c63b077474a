package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/lockout"
	"github.com/MrEthical07/authcore/revocation"
	"golang.org/x/crypto/bcrypt"
)

// Config is read once by [Builder.Build] and treated as immutable afterwards.
type Config struct {
	JWT        JWTConfig
	Password   PasswordConfig
	Refresh    RefreshConfig
	Lockout    LockoutConfig
	Revocation RevocationConfig
	Timeouts   TimeoutConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access token issuance.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	KeyID         string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig sets Argon2id parameters for new hashes. BcryptCost is used
// only to verify legacy bcrypt hashes; zero selects bcrypt.DefaultCost.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	BcryptCost  int
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls refresh token lifetime and sweeping.
type RefreshConfig struct {
	TTL time.Duration
	// Retention keeps expired rows readable so Refresh can tell expired from
	// unknown tokens until the sweeper removes them.
	Retention     time.Duration
	RedisPrefix   string
	SweepInterval time.Duration
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig sets the brute-force lockout threshold and window.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig controls the access token blacklist.
type RevocationConfig struct {
	Enabled       bool
	RedisPrefix   string
	Buffer        time.Duration
	OnUnavailable revocation.Policy
}

/*
====================================
TIMEOUT CONFIG
====================================
*/

// TimeoutConfig bounds every store call.
type TimeoutConfig struct {
	Store      time.Duration
	Revocation time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration
}

// MetricsConfig toggles in-process counters and the latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. Signing keys must still be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			BcryptCost:  bcrypt.DefaultCost,
		},
		Refresh: RefreshConfig{
			TTL:           7 * 24 * time.Hour,
			Retention:     24 * time.Hour,
			RedisPrefix:   "rt",
			SweepInterval: time.Hour,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		Revocation: RevocationConfig{
			Enabled:       true,
			RedisPrefix:   "rvk",
			Buffer:        300 * time.Second,
			OnUnavailable: revocation.FailOpen,
		},
		Timeouts: TimeoutConfig{
			Store:      2 * time.Second,
			Revocation: 250 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
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

func (c *Config) lockoutPolicy() lockout.Policy {
	return lockout.Policy{Threshold: c.Lockout.Threshold, Duration: c.Lockout.Duration}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
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
	if c.Password.BcryptCost != 0 &&
		(c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost) {
		return fmt.Errorf("Password BcryptCost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.Retention < 0 {
		return errors.New("Refresh Retention must be >= 0")
	}
	if c.Refresh.SweepInterval < 0 {
		return errors.New("Refresh SweepInterval must be >= 0")
	}

	// Lockout
	if err := c.lockoutPolicy().Validate(); err != nil {
		return fmt.Errorf("Lockout: %w", err)
	}

	// Revocation
	switch c.Revocation.OnUnavailable {
	case revocation.FailOpen:
	case revocation.FailClosed:
		if !c.Revocation.Enabled {
			return errors.New("Revocation FailClosed requires Revocation Enabled")
		}
	default:
		return errors.New("invalid Revocation OnUnavailable policy")
	}
	if c.Revocation.Buffer < 0 {
		return errors.New("Revocation Buffer must be >= 0")
	}

	// Timeouts
	if c.Timeouts.Store <= 0 {
		return errors.New("Timeouts Store must be > 0")
	}
	if c.Timeouts.Revocation <= 0 {
		return errors.New("Timeouts Revocation must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
