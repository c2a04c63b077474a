package authcore_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/MrEthical07/authcore/store/memory"
)

func TestDefaultConfigNeedsOnlyAKey(t *testing.T) {
	cfg := authcore.DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without a signing key to be rejected")
	}
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config with key to validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*authcore.Config)
	}{
		{"zero access ttl", func(c *authcore.Config) { c.JWT.AccessTTL = 0 }},
		{"short hs256 key", func(c *authcore.Config) { c.JWT.PrivateKey = []byte("short") }},
		{"ed25519 without public key", func(c *authcore.Config) { c.JWT.SigningMethod = "ed25519" }},
		{"unknown signing method", func(c *authcore.Config) { c.JWT.SigningMethod = "rs256" }},
		{"leeway too large", func(c *authcore.Config) { c.JWT.Leeway = 3 * time.Minute }},
		{"argon2 memory", func(c *authcore.Config) { c.Password.Memory = 1024 }},
		{"argon2 salt", func(c *authcore.Config) { c.Password.SaltLength = 8 }},
		{"bcrypt cost", func(c *authcore.Config) { c.Password.BcryptCost = 99 }},
		{"refresh ttl", func(c *authcore.Config) { c.Refresh.TTL = 0 }},
		{"negative retention", func(c *authcore.Config) { c.Refresh.Retention = -time.Second }},
		{"lockout threshold", func(c *authcore.Config) { c.Lockout.Threshold = 0 }},
		{"lockout duration", func(c *authcore.Config) { c.Lockout.Duration = 0 }},
		{"fail closed without revocation", func(c *authcore.Config) {
			c.Revocation.Enabled = false
			c.Revocation.OnUnavailable = revocation.FailClosed
		}},
		{"store timeout", func(c *authcore.Config) { c.Timeouts.Store = 0 }},
		{"audit buffer", func(c *authcore.Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuildRequiresStores(t *testing.T) {
	if _, err := authcore.New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected Build without a principal store to fail")
	}
	if _, err := authcore.New().WithConfig(testConfig()).WithPrincipalStore(memory.New()).Build(); err == nil {
		t.Fatal("expected Build with revocation but no redis client to fail")
	}

	b := authcore.New().WithConfig(testConfig()).WithPrincipalStore(memory.New())
	cfg := testConfig()
	cfg.Revocation.Enabled = false
	if _, err := b.WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected Build without any refresh store to fail")
	}
}

func TestBuildIsSingleUse(t *testing.T) {
	h := newHarness(t, nil)

	b := authcore.New().WithConfig(testConfig()).WithRedis(h.rdb).WithPrincipalStore(memory.New())
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestPublicError(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{nil, nil},
		{authcore.ErrInvalidCredentials, authcore.ErrAuthenticationFailed},
		{authcore.ErrAccountDisabled, authcore.ErrAuthenticationFailed},
		{authcore.ErrAccountLocked, authcore.ErrAccountLocked},
		{fmt.Errorf("wrapped: %w", authcore.ErrAccountLocked), authcore.ErrAccountLocked},
		{authcore.ErrTokenRevoked, authcore.ErrTokenRevoked},
	}
	for _, tt := range tests {
		if got := authcore.PublicError(tt.in); !errors.Is(got, tt.want) && got != tt.want {
			t.Fatalf("PublicError(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if !authcore.IsTokenError(authcore.ErrTokenExpired) || !authcore.IsTokenError(authcore.ErrTokenRevoked) {
		t.Fatal("expected token errors to be recognized")
	}
	if authcore.IsTokenError(authcore.ErrRevocationUnavailable) {
		t.Fatal("revocation outage is not a token error")
	}
}
