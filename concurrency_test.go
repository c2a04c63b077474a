package authcore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/authcore"
)

func TestConcurrentFailedLoginsLockExactlyAtThreshold(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	const workers = 16
	start := make(chan struct{})
	results := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := h.engine.Authenticate(ctx, h.alice.Email, "wrong")
			results <- err
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	var invalid, locked int
	for err := range results {
		switch {
		case errors.Is(err, authcore.ErrInvalidCredentials):
			invalid++
		case errors.Is(err, authcore.ErrAccountLocked):
			locked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	threshold := testConfig().Lockout.Threshold
	if invalid != threshold-1 {
		t.Fatalf("expected %d plain failures before the lock, got %d", threshold-1, invalid)
	}
	if locked != workers-invalid {
		t.Fatalf("expected %d locked responses, got %d", workers-invalid, locked)
	}

	p, err := h.store.FindByID(ctx, h.alice.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if p.FailedLoginAttempts < threshold || p.LockedUntil == nil {
		t.Fatalf("principal not locked: attempts=%d lockedUntil=%v", p.FailedLoginAttempts, p.LockedUntil)
	}
	if _, err := h.engine.Authenticate(ctx, h.alice.Email, testPassword); !errors.Is(err, authcore.ErrAccountLocked) {
		t.Fatalf("correct password after concurrent lock: expected ErrAccountLocked, got %v", err)
	}

	if got := h.engine.MetricsSnapshot().Counters[authcore.MetricLockoutTriggered]; got != 1 {
		t.Fatalf("one lock must be counted once, got %d", got)
	}
	var lockEvents int
	for _, ev := range h.drainAudit() {
		if ev.EventType == authcore.AuditAccountLocked {
			lockEvents++
		}
	}
	if lockEvents != 1 {
		t.Fatalf("expected one account_locked event, got %d", lockEvents)
	}
}

func TestConcurrentRefreshAndLogout(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	sess, err := h.engine.Authenticate(ctx, h.alice.Email, testPassword)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	const workers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers + 1)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := h.engine.Refresh(ctx, sess.RefreshToken)
			errs <- err
		}()
	}
	go func() {
		defer wg.Done()
		<-start
		if _, err := h.engine.Logout(ctx, sess.RefreshToken, sess.AccessToken); err != nil {
			t.Errorf("Logout: %v", err)
		}
	}()

	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && !errors.Is(err, authcore.ErrInvalidRefreshToken) {
			t.Fatalf("refresh racing logout: unexpected error %v", err)
		}
	}
	if _, err := h.engine.Refresh(ctx, sess.RefreshToken); !errors.Is(err, authcore.ErrInvalidRefreshToken) {
		t.Fatalf("refresh after logout: expected ErrInvalidRefreshToken, got %v", err)
	}
}
