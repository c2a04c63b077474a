package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/lockout"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/permission"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Authenticate AuthenticateDeps
	Session      SessionDeps
	Refresh      RefreshDeps
	Logout       LogoutDeps
	Validate     ValidateDeps
}

// PrincipalRecord is the flow-local principal model.
type PrincipalRecord struct {
	ID                  string
	Email               string
	PasswordHash        string
	Enabled             bool
	EmailVerified       bool
	Roles               []permission.Role
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastFailedLoginAt   *time.Time
	LastLoginAt         *time.Time
}

func (p *PrincipalRecord) snapshot() lockout.Snapshot {
	return lockout.Snapshot{
		Enabled:        p.Enabled,
		FailedAttempts: p.FailedLoginAttempts,
		LockedUntil:    p.LockedUntil,
	}
}

// AuditFunc emits one security event. Implementations must not block the
// request for long and must swallow their own errors.
type AuditFunc func(ctx context.Context, eventType string, success bool, principalID, email string, err error, detail string)

// Observability bundles the hooks every flow uses.
type Observability struct {
	MetricInc func(metrics.ID)
	EmitAudit AuditFunc
	Warn      func(msg string, args ...any)
}

func (o *Observability) fill() {
	if o.MetricInc == nil {
		o.MetricInc = func(metrics.ID) {}
	}
	if o.EmitAudit == nil {
		o.EmitAudit = func(context.Context, string, bool, string, string, error, string) {}
	}
	if o.Warn == nil {
		o.Warn = func(string, ...any) {}
	}
}
