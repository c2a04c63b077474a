package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/lockout"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/permission"
)

type (
	// Role is a named group of permissions.
	Role = permission.Role
	// Permission is a leaf grant.
	Permission = permission.Permission
	// PermissionSet is the resolved union of permission names.
	PermissionSet = permission.Set
	// Claims is a verified access token payload.
	Claims = jwt.Claims

	// LockoutPolicy is passed to [PrincipalStore.RecordLoginFailure].
	LockoutPolicy = lockout.Policy
	// LockoutOutcome reports the state a failed attempt left behind.
	LockoutOutcome = lockout.Outcome
	// LockoutSnapshot is the lockout-relevant part of a principal.
	LockoutSnapshot = lockout.Snapshot

	// AuditEvent is one security event handed to an [AuditSink].
	AuditEvent = audit.Event
	// AuditSink receives audit events. Errors are logged, never surfaced.
	AuditSink = audit.Sink
)

// Principal is the user account subject to authentication.
type Principal struct {
	ID                  string
	Email               string
	PasswordHash        string
	Enabled             bool
	EmailVerified       bool
	Roles               []Role
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastFailedLoginAt   *time.Time
	LastLoginAt         *time.Time
}

// RoleNames returns the principal's role names in stored order.
func (p *Principal) RoleNames() []string {
	if p == nil {
		return nil
	}
	return permission.RoleNames(p.Roles)
}

// View returns the caller-safe projection of p.
func (p *Principal) View() PrincipalView {
	if p == nil {
		return PrincipalView{}
	}
	return PrincipalView{
		ID:            p.ID,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		Roles:         p.RoleNames(),
		Permissions:   permission.Resolve(p.Roles).Names(),
		LastLoginAt:   p.LastLoginAt,
	}
}

// LockoutSnapshot returns the lockout fields of p.
func (p *Principal) LockoutSnapshot() LockoutSnapshot {
	return LockoutSnapshot{
		Enabled:        p.Enabled,
		FailedAttempts: p.FailedLoginAttempts,
		LockedUntil:    p.LockedUntil,
	}
}

// PrincipalView is the part of a principal returned to clients. It never
// carries the password hash or lockout counters.
type PrincipalView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	Roles         []string   `json:"roles"`
	Permissions   []string   `json:"permissions"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// AuthResult is returned by [Engine.Authenticate] and [Engine.Refresh].
type AuthResult struct {
	AccessToken      string        `json:"access_token"`
	AccessExpiresAt  time.Time     `json:"access_expires_at"`
	RefreshToken     string        `json:"refresh_token"`
	RefreshExpiresAt time.Time     `json:"refresh_expires_at"`
	Principal        PrincipalView `json:"principal"`
}

// PrincipalStore is the credential store the engine reads and updates.
//
// Lookups return ErrPrincipalNotFound (possibly wrapped) when nothing
// matches. RecordLoginFailure must apply [LockoutPolicy.Fail] atomically per
// principal: concurrent failures must all be counted and the threshold
// compare must see the incremented value.
type PrincipalStore interface {
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	FindByID(ctx context.Context, id string) (*Principal, error)
	ClearLockout(ctx context.Context, id string) error
	RecordLoginFailure(ctx context.Context, id string, now time.Time, policy LockoutPolicy) (LockoutOutcome, error)
	RecordLoginSuccess(ctx context.Context, id string, now time.Time) error
}
