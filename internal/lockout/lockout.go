package lockout

import (
	"errors"
	"time"
)

// State is the lockout state of a principal at a point in time.
type State int

const (
	Active State = iota
	Locked
	LockExpiredPendingClear
	Disabled
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Locked:
		return "locked"
	case LockExpiredPendingClear:
		return "lock_expired_pending_clear"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Policy holds the lockout threshold and duration.
type Policy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultPolicy locks for 15 minutes after 5 consecutive failures.
func DefaultPolicy() Policy {
	return Policy{Threshold: 5, Duration: 15 * time.Minute}
}

// Validate rejects non-positive values.
func (p Policy) Validate() error {
	if p.Threshold <= 0 {
		return errors.New("lockout threshold must be > 0")
	}
	if p.Duration <= 0 {
		return errors.New("lockout duration must be > 0")
	}
	return nil
}

// Snapshot is the lockout-relevant part of a principal record.
type Snapshot struct {
	Enabled        bool
	FailedAttempts int
	LockedUntil    *time.Time
}

// Evaluate returns the state of s at now. A lock whose expiry equals now has
// expired.
func Evaluate(s Snapshot, now time.Time) State {
	if s.LockedUntil != nil {
		if now.Before(*s.LockedUntil) {
			return Locked
		}
		return LockExpiredPendingClear
	}
	if !s.Enabled {
		return Disabled
	}
	return Active
}

// Clear returns s with the counter and lock reset.
func Clear(s Snapshot) Snapshot {
	s.FailedAttempts = 0
	s.LockedUntil = nil
	return s
}

// Outcome is the result of recording one failed attempt.
type Outcome struct {
	Attempts    int
	LockedUntil *time.Time
	// Locked is true when the principal is locked after this failure.
	Locked bool
	// Triggered is true only for the failure that started the lock. Failures
	// landing on an already active lock leave its expiry untouched.
	Triggered bool
}

// Fail applies one failed attempt to s. Stores must call it while holding
// exclusive access to the principal so concurrent failures are all counted.
func (p Policy) Fail(s Snapshot, now time.Time) (Snapshot, Outcome) {
	s.FailedAttempts++
	out := Outcome{Attempts: s.FailedAttempts, LockedUntil: s.LockedUntil}
	if s.LockedUntil != nil && now.Before(*s.LockedUntil) {
		out.Locked = true
		return s, out
	}
	if s.FailedAttempts >= p.Threshold {
		until := now.Add(p.Duration)
		s.LockedUntil = &until
		out.LockedUntil = &until
		out.Locked = true
		out.Triggered = true
	}
	return s, out
}

// Succeed returns s after a successful sign-in.
func Succeed(s Snapshot) Snapshot {
	return Clear(s)
}
