package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/internal/random"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	store := NewRedisStore(rdb, Config{
		TTL:       time.Hour,
		Retention: 10 * time.Minute,
		Prefix:    "rt",
		Now:       clock.Now,
	})
	return store, mr, clock
}

func TestRedisIssueLookupDelete(t *testing.T) {
	store, mr, clock := newRedisStoreTest(t)
	ctx := context.Background()

	rec, err := store.Issue(ctx, "42")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !random.WellFormed(rec.Token) {
		t.Fatalf("issued token not well formed: %q", rec.Token)
	}
	if !rec.ExpiresAt.Equal(clock.now.Add(time.Hour)) {
		t.Fatalf("ExpiresAt = %v", rec.ExpiresAt)
	}

	key := "rt:t:" + random.HashToken(rec.Token)
	if !mr.Exists(key) {
		t.Fatalf("expected hashed key %s", key)
	}
	if ttl := mr.TTL(key); ttl != 70*time.Minute {
		t.Fatalf("TTL = %v, want ttl+retention", ttl)
	}

	got, err := store.Lookup(ctx, rec.Token)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.PrincipalID != "42" || got.Token != rec.Token || !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Fatalf("lookup mismatch: %+v", got)
	}

	deleted, err := store.Delete(ctx, rec.Token)
	if err != nil || !deleted {
		t.Fatalf("first delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.Delete(ctx, rec.Token)
	if err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}
	if _, err := store.Lookup(ctx, rec.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if members, _ := mr.Members("rt:p:42"); len(members) != 0 {
		t.Fatalf("index not pruned: %v", members)
	}
}

func TestRedisLookupUnknownAndGarbage(t *testing.T) {
	store, _, _ := newRedisStoreTest(t)
	ctx := context.Background()

	unknown, _ := random.NewToken()
	for _, tok := range []string{"", "garbage", unknown} {
		if _, err := store.Lookup(ctx, tok); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Lookup(%q): expected ErrNotFound, got %v", tok, err)
		}
	}
}

func TestRedisExpiredRowStaysVisibleUntilRetention(t *testing.T) {
	store, mr, clock := newRedisStoreTest(t)
	ctx := context.Background()

	rec, err := store.Issue(ctx, "7")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mr.FastForward(65 * time.Minute)
	clock.now = clock.now.Add(65 * time.Minute)

	got, err := store.Lookup(ctx, rec.Token)
	if err != nil {
		t.Fatalf("expected expired row to remain visible: %v", err)
	}
	if !got.Expired(clock.now) {
		t.Fatal("expected record to report expired")
	}

	mr.FastForward(10 * time.Minute)
	if _, err := store.Lookup(ctx, rec.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected row gone after retention, got %v", err)
	}
}

func TestRedisDeleteAllForPrincipal(t *testing.T) {
	store, mr, _ := newRedisStoreTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.Issue(ctx, "u1"); err != nil {
			t.Fatalf("issue: %v", err)
		}
	}
	kept, err := store.Issue(ctx, "u2")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	n, err := store.DeleteAllForPrincipal(ctx, "u1")
	if err != nil || n != 3 {
		t.Fatalf("DeleteAllForPrincipal = %d, %v; want 3", n, err)
	}
	if mr.Exists("rt:p:u1") {
		t.Fatal("expected index removed")
	}
	if _, err := store.Lookup(ctx, kept.Token); err != nil {
		t.Fatalf("other principal's token must survive: %v", err)
	}

	n, err = store.DeleteAllForPrincipal(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("second DeleteAllForPrincipal = %d, %v", n, err)
	}
}

func TestRedisDeleteExpired(t *testing.T) {
	store, _, clock := newRedisStoreTest(t)
	ctx := context.Background()

	old, err := store.Issue(ctx, "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.now = clock.now.Add(30 * time.Minute)
	fresh, err := store.Issue(ctx, "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	n, err := store.DeleteExpired(ctx, old.ExpiresAt.Add(time.Millisecond))
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpired = %d, %v; want 1", n, err)
	}
	if _, err := store.Lookup(ctx, old.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected swept token gone, got %v", err)
	}
	if _, err := store.Lookup(ctx, fresh.Token); err != nil {
		t.Fatalf("fresh token must survive: %v", err)
	}
}

func TestRedisUnavailable(t *testing.T) {
	store, mr, _ := newRedisStoreTest(t)
	mr.SetError("ERR injected failure")

	if _, err := store.Issue(context.Background(), "u1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	tok, _ := random.NewToken()
	if _, err := store.Lookup(context.Background(), tok); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
