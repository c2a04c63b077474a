package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/lockout"
	"github.com/MrEthical07/authcore/internal/metrics"
)

// AuthenticateErrors carries host-level sentinel errors.
type AuthenticateErrors struct {
	EngineNotReady             error
	InvalidCredentials         error
	AccountLocked              error
	AccountDisabled            error
	CredentialStoreUnavailable error
}

// AuthenticateDeps captures credential verification dependencies.
type AuthenticateDeps struct {
	Policy    lockout.Policy
	Now       func() time.Time
	DummyHash string

	FindByEmail    func(ctx context.Context, email string) (*PrincipalRecord, error)
	IsNotFound     func(error) bool
	ClearLockout   func(ctx context.Context, id string) error
	RecordFailure  func(ctx context.Context, id string, now time.Time, policy lockout.Policy) (lockout.Outcome, error)
	RecordSuccess  func(ctx context.Context, id string, now time.Time) error
	VerifyPassword func(password, hash string) (bool, error)
	NormalizeEmail func(string) string

	Observability
	Errors AuthenticateErrors
}

// RunAuthenticate verifies email/password against the principal store and the
// lockout state machine. On success it returns the principal as updated by
// the successful sign-in.
func RunAuthenticate(ctx context.Context, email, password string, deps AuthenticateDeps) (*PrincipalRecord, error) {
	if deps.FindByEmail == nil ||
		deps.IsNotFound == nil ||
		deps.ClearLockout == nil ||
		deps.RecordFailure == nil ||
		deps.RecordSuccess == nil ||
		deps.VerifyPassword == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NormalizeEmail == nil {
		deps.NormalizeEmail = func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	}
	deps.fill()

	email = deps.NormalizeEmail(email)
	now := deps.Now()

	rec, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if deps.IsNotFound(err) {
			// Same hashing work as a real principal so timing does not leak existence.
			_, _ = deps.VerifyPassword(password, deps.DummyHash)
			deps.MetricInc(metrics.LoginUnknownPrincipal)
			deps.MetricInc(metrics.LoginFailure)
			deps.EmitAudit(ctx, audit.EventLoginFailure, false, "", email, deps.Errors.InvalidCredentials, "unknown_principal")
			return nil, deps.Errors.InvalidCredentials
		}
		deps.Warn("principal lookup failed", "error", err)
		return nil, fmt.Errorf("%w: %v", deps.Errors.CredentialStoreUnavailable, err)
	}

	switch lockout.Evaluate(rec.snapshot(), now) {
	case lockout.Locked:
		deps.MetricInc(metrics.LoginLocked)
		deps.MetricInc(metrics.LoginFailure)
		deps.EmitAudit(ctx, audit.EventLoginFailure, false, rec.ID, email, deps.Errors.AccountLocked, "locked")
		return nil, deps.Errors.AccountLocked
	case lockout.LockExpiredPendingClear:
		if err := deps.ClearLockout(ctx, rec.ID); err != nil {
			deps.Warn("lockout clear failed", "principal_id", rec.ID, "error", err)
			return nil, fmt.Errorf("%w: %v", deps.Errors.CredentialStoreUnavailable, err)
		}
		rec.FailedLoginAttempts = 0
		rec.LockedUntil = nil
		deps.MetricInc(metrics.LockoutCleared)
		deps.EmitAudit(ctx, audit.EventLockoutCleared, true, rec.ID, email, nil, "")
	}

	ok, verr := deps.VerifyPassword(password, rec.PasswordHash)
	if verr != nil {
		deps.Warn("password verification error", "principal_id", rec.ID, "error", verr)
	}
	if verr != nil || !ok {
		out, err := deps.RecordFailure(ctx, rec.ID, now, deps.Policy)
		if err != nil {
			deps.Warn("recording login failure failed", "principal_id", rec.ID, "error", err)
			return nil, fmt.Errorf("%w: %v", deps.Errors.CredentialStoreUnavailable, err)
		}
		deps.MetricInc(metrics.LoginFailure)
		switch {
		case out.Triggered:
			deps.MetricInc(metrics.LockoutTriggered)
			deps.EmitAudit(ctx, audit.EventAccountLocked, false, rec.ID, email, deps.Errors.AccountLocked,
				fmt.Sprintf("attempts=%d locked_until=%s", out.Attempts, out.LockedUntil.UTC().Format(time.RFC3339)))
			return nil, deps.Errors.AccountLocked
		case out.Locked:
			// A concurrent failure locked the account after it was loaded.
			deps.MetricInc(metrics.LoginLocked)
			deps.EmitAudit(ctx, audit.EventLoginFailure, false, rec.ID, email, deps.Errors.AccountLocked, "locked")
			return nil, deps.Errors.AccountLocked
		}
		deps.EmitAudit(ctx, audit.EventLoginFailure, false, rec.ID, email, deps.Errors.InvalidCredentials,
			fmt.Sprintf("password_mismatch attempts=%d", out.Attempts))
		return nil, deps.Errors.InvalidCredentials
	}

	if !rec.Enabled {
		deps.MetricInc(metrics.LoginDisabled)
		deps.MetricInc(metrics.LoginFailure)
		deps.EmitAudit(ctx, audit.EventLoginFailure, false, rec.ID, email, deps.Errors.AccountDisabled, "disabled")
		return nil, deps.Errors.AccountDisabled
	}

	if err := deps.RecordSuccess(ctx, rec.ID, now); err != nil {
		deps.Warn("recording login success failed", "principal_id", rec.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", deps.Errors.CredentialStoreUnavailable, err)
	}
	rec.FailedLoginAttempts = 0
	rec.LockedUntil = nil
	rec.LastLoginAt = &now

	deps.MetricInc(metrics.LoginSuccess)
	deps.EmitAudit(ctx, audit.EventLoginSuccess, true, rec.ID, email, nil, "")
	return rec, nil
}
