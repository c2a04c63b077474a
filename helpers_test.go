package authcore_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-password-123"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("k", 32))
	cfg.JWT.Issuer = "authcore-test"
	cfg.Password = authcore.PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
		BcryptCost:  bcrypt.MinCost,
	}
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

type harness struct {
	engine *authcore.Engine
	store  *memory.Store
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	clock  *testClock
	audit  *authcore.ChannelAuditSink
	alice  authcore.Principal
}

func newHarness(t *testing.T, mutate func(*authcore.Config)) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newTestClock()
	store := memory.New()
	sink := authcore.NewChannelAuditSink(256)

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithPrincipalStore(store).
		WithAuditSink(sink).
		WithClock(clock.Now).
		WithPermissions("reports:read", "reports:write", "users:manage").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	hash, err := engine.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	alice, err := store.Add(authcore.Principal{
		Email:        "alice@example.com",
		PasswordHash: hash,
		Enabled:      true,
		Roles: []authcore.Role{
			{ID: "1", Name: "editor", Permissions: []authcore.Permission{{Name: "reports:read"}, {Name: "reports:write"}}},
		},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	return &harness{
		engine: engine,
		store:  store,
		mr:     mr,
		rdb:    rdb,
		clock:  clock,
		audit:  sink,
		alice:  alice,
	}
}

// drainAudit closes the engine so every queued event reaches the sink.
func (h *harness) drainAudit() []authcore.AuditEvent {
	h.engine.Close()
	var out []authcore.AuditEvent
	for {
		select {
		case ev := <-h.audit.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}
