package refresh

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Lookup when no row exists for a token.
	ErrNotFound = errors.New("refresh token not found")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("refresh store unavailable")
)

// Record is one refresh token row. Token is only populated on values returned
// by Issue and Lookup.
type Record struct {
	Token       string
	PrincipalID string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether now is strictly after r's expiry. A token is
// still usable at the exact expiry instant.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Store is the contract every backend implements.
type Store interface {
	Issue(ctx context.Context, principalID string) (Record, error)
	Lookup(ctx context.Context, token string) (*Record, error)
	Delete(ctx context.Context, token string) (bool, error)
	DeleteAllForPrincipal(ctx context.Context, principalID string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Config is shared by the backends.
type Config struct {
	TTL       time.Duration
	Retention time.Duration
	Prefix    string
	Now       func() time.Time
}

const (
	DefaultTTL       = 7 * 24 * time.Hour
	DefaultRetention = 24 * time.Hour
	defaultPrefix    = "rt"
)

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Retention < 0 {
		c.Retention = 0
	}
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
