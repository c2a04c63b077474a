package revocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore/internal/random"
	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned under FailClosed when the store cannot answer.
var ErrUnavailable = errors.New("revocation store unavailable")

var errDisabled = errors.New("revocation disabled")

// Policy selects behaviour when the backing store is unreachable.
type Policy int

const (
	FailOpen Policy = iota
	FailClosed
)

func (p Policy) String() string {
	if p == FailClosed {
		return "fail_closed"
	}
	return "fail_open"
}

// ParsePolicy accepts "fail_open" / "fail_closed" (also with dashes, any case).
func ParsePolicy(s string) (Policy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "", "fail_open", "open":
		return FailOpen, nil
	case "fail_closed", "closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("unknown revocation policy %q", s)
	}
}

// Config controls a RedisStore.
type Config struct {
	Enabled       bool
	Prefix        string
	Buffer        time.Duration
	Timeout       time.Duration
	OnUnavailable Policy
	Logger        *slog.Logger
	Now           func() time.Time

	// OnDegrade is called once per call that could not reach Redis.
	OnDegrade func(op string)
}

const (
	defaultPrefix  = "rvk"
	defaultBuffer  = 300 * time.Second
	defaultTimeout = 250 * time.Millisecond
)

// RedisStore is the Redis-backed blacklist.
type RedisStore struct {
	client redis.UniversalClient
	cfg    Config
	logger *slog.Logger

	unavailable atomic.Uint64
	writes      atomic.Uint64
}

// NewRedisStore returns a store. A nil client behaves like a disabled store.
func NewRedisStore(client redis.UniversalClient, cfg Config) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisStore{client: client, cfg: cfg, logger: logger}
}

func (s *RedisStore) key(token string) string {
	return s.cfg.Prefix + ":" + random.HashToken(token)
}

// TTL returns how long an entry for a token expiring at expiresAt is kept.
// Partial seconds round up so the entry never dies before the token.
func (s *RedisStore) TTL(expiresAt time.Time) time.Duration {
	remaining := expiresAt.Sub(s.cfg.Now())
	if r := remaining % time.Second; r > 0 {
		remaining += time.Second - r
	}
	if remaining < s.cfg.Buffer {
		return s.cfg.Buffer
	}
	return remaining
}

// Blacklist records token as revoked until shortly after expiresAt. It
// reports whether an entry was written; under FailOpen an outage returns
// false with a nil error.
func (s *RedisStore) Blacklist(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	if token == "" {
		return false, nil
	}
	if !s.available() {
		return false, s.degrade("blacklist", token, errDisabled)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.key(token), "1", s.TTL(expiresAt)).Err(); err != nil {
		return false, s.degrade("blacklist", token, err)
	}
	s.writes.Add(1)
	return true, nil
}

// IsBlacklisted reports whether token has a live revocation entry.
func (s *RedisStore) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	if !s.available() {
		return false, s.degrade("check", token, errDisabled)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	n, err := s.client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, s.degrade("check", token, err)
	}
	return n > 0, nil
}

// Policy returns the configured unavailability policy.
func (s *RedisStore) Policy() Policy { return s.cfg.OnUnavailable }

// Unavailable returns how many calls could not reach the store.
func (s *RedisStore) Unavailable() uint64 { return s.unavailable.Load() }

// Writes returns how many blacklist entries were written.
func (s *RedisStore) Writes() uint64 { return s.writes.Load() }

func (s *RedisStore) available() bool {
	return s.cfg.Enabled && s.client != nil
}

func (s *RedisStore) degrade(op, token string, cause error) error {
	if errors.Is(cause, errDisabled) {
		s.logger.Debug("revocation disabled", "op", op)
	} else {
		s.unavailable.Add(1)
		if s.cfg.OnDegrade != nil {
			s.cfg.OnDegrade(op)
		}
		s.logger.Warn("revocation store unavailable",
			"op", op,
			"policy", s.cfg.OnUnavailable.String(),
			"token_fp", random.Fingerprint(token),
			"error", cause,
		)
	}
	if s.cfg.OnUnavailable == FailClosed {
		return fmt.Errorf("%w: %v", ErrUnavailable, cause)
	}
	return nil
}
