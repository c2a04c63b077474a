package lockout

import (
	"testing"
	"time"
)

func ptr(t time.Time) *time.Time { return &t }

func TestEvaluate(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		snap Snapshot
		want State
	}{
		{"active", Snapshot{Enabled: true}, Active},
		{"disabled", Snapshot{Enabled: false}, Disabled},
		{"locked", Snapshot{Enabled: true, LockedUntil: ptr(now.Add(time.Minute))}, Locked},
		{"locked wins over disabled", Snapshot{LockedUntil: ptr(now.Add(time.Second))}, Locked},
		{"expired", Snapshot{Enabled: true, FailedAttempts: 5, LockedUntil: ptr(now.Add(-time.Second))}, LockExpiredPendingClear},
		{"expires exactly now", Snapshot{Enabled: true, LockedUntil: ptr(now)}, LockExpiredPendingClear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.snap, now); got != tt.want {
				t.Fatalf("Evaluate = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClearThenEvaluate(t *testing.T) {
	now := time.Now()
	s := Snapshot{Enabled: false, FailedAttempts: 5, LockedUntil: ptr(now.Add(-time.Minute))}

	if Evaluate(s, now) != LockExpiredPendingClear {
		t.Fatal("expected pending clear")
	}
	s = Clear(s)
	if s.FailedAttempts != 0 || s.LockedUntil != nil {
		t.Fatalf("Clear left state behind: %+v", s)
	}
	if Evaluate(s, now) != Disabled {
		t.Fatal("expected disabled after clearing a disabled principal")
	}
}

func TestFailReachesThreshold(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Snapshot{Enabled: true}

	for i := 1; i < p.Threshold; i++ {
		var out Outcome
		s, out = p.Fail(s, now)
		if out.Locked || out.Attempts != i {
			t.Fatalf("attempt %d: unexpected outcome %+v", i, out)
		}
	}

	s, out := p.Fail(s, now)
	if !out.Locked || !out.Triggered || out.Attempts != 5 {
		t.Fatalf("expected lock on attempt 5, got %+v", out)
	}
	if !out.LockedUntil.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("LockedUntil = %v", out.LockedUntil)
	}
	if Evaluate(s, now) != Locked {
		t.Fatal("expected locked state")
	}
	if Evaluate(s, now.Add(15*time.Minute)) != LockExpiredPendingClear {
		t.Fatal("expected lock to expire after duration")
	}
}

func TestFailOnActiveLockDoesNotRetrigger(t *testing.T) {
	p := DefaultPolicy()
	now := time.Unix(1_700_000_000, 0)
	until := now.Add(15 * time.Minute)
	s := Snapshot{Enabled: true, FailedAttempts: 5, LockedUntil: &until}

	s, out := p.Fail(s, now.Add(time.Minute))
	if !out.Locked || out.Triggered || out.Attempts != 6 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !s.LockedUntil.Equal(until) || !out.LockedUntil.Equal(until) {
		t.Fatalf("lock expiry must not move, got %v", s.LockedUntil)
	}

	// An expired lock that was never cleared counts as a fresh trigger.
	later := until.Add(time.Minute)
	_, out = p.Fail(s, later)
	if !out.Triggered || !out.LockedUntil.Equal(later.Add(15*time.Minute)) {
		t.Fatalf("expected a new lock after expiry, got %+v", out)
	}
}

func TestSucceedResets(t *testing.T) {
	s := Succeed(Snapshot{Enabled: true, FailedAttempts: 4})
	if s.FailedAttempts != 0 || s.LockedUntil != nil {
		t.Fatalf("Succeed = %+v", s)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	if err := (Policy{Threshold: 0, Duration: time.Minute}).Validate(); err == nil {
		t.Fatal("expected zero threshold to be rejected")
	}
	if err := (Policy{Threshold: 3}).Validate(); err == nil {
		t.Fatal("expected zero duration to be rejected")
	}
}
