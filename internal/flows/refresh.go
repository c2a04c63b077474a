package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/refresh"
)

// RefreshErrors carries host-level sentinel errors.
type RefreshErrors struct {
	EngineNotReady             error
	InvalidRefreshToken        error
	ExpiredRefreshToken        error
	AccountDisabled            error
	RefreshStoreUnavailable    error
	CredentialStoreUnavailable error
	TokenIssue                 error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Now         func() time.Time
	Lookup      func(ctx context.Context, token string) (*refresh.Record, error)
	Delete      func(ctx context.Context, token string) (bool, error)
	FindByID    func(ctx context.Context, id string) (*PrincipalRecord, error)
	IsNotFound  func(error) bool
	IssueAccess func(p *PrincipalRecord) (string, time.Time, error)

	Observability
	Errors RefreshErrors
}

// RunRefresh exchanges a refresh token for a new access token built from the
// principal's current stored state. The refresh token itself is returned
// unchanged.
func RunRefresh(ctx context.Context, token string, deps RefreshDeps) (*SessionResult, error) {
	if deps.Lookup == nil || deps.Delete == nil || deps.FindByID == nil || deps.IsNotFound == nil || deps.IssueAccess == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.fill()

	fail := func(principalID, detail string, err error) (*SessionResult, error) {
		deps.MetricInc(metrics.RefreshFailure)
		deps.EmitAudit(ctx, audit.EventRefreshFailure, false, principalID, "", err, detail)
		return nil, err
	}

	if token == "" {
		return fail("", "empty_token", deps.Errors.InvalidRefreshToken)
	}

	rec, err := deps.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return fail("", "not_found", deps.Errors.InvalidRefreshToken)
		}
		deps.Warn("refresh lookup failed", "error", err)
		return nil, fmt.Errorf("%w: %v", deps.Errors.RefreshStoreUnavailable, err)
	}

	drop := func() {
		if _, err := deps.Delete(ctx, token); err != nil {
			deps.Warn("refresh token delete failed", "principal_id", rec.PrincipalID, "error", err)
		}
	}

	if rec.Expired(deps.Now()) {
		drop()
		deps.MetricInc(metrics.RefreshExpired)
		return fail(rec.PrincipalID, "expired", deps.Errors.ExpiredRefreshToken)
	}

	p, err := deps.FindByID(ctx, rec.PrincipalID)
	if err != nil {
		if deps.IsNotFound(err) {
			drop()
			return fail(rec.PrincipalID, "principal_missing", deps.Errors.InvalidRefreshToken)
		}
		deps.Warn("principal lookup failed", "principal_id", rec.PrincipalID, "error", err)
		return nil, fmt.Errorf("%w: %v", deps.Errors.CredentialStoreUnavailable, err)
	}
	if !p.Enabled {
		drop()
		return fail(p.ID, "disabled", deps.Errors.AccountDisabled)
	}

	access, accessExp, err := deps.IssueAccess(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.TokenIssue, err)
	}

	deps.MetricInc(metrics.RefreshSuccess)
	deps.EmitAudit(ctx, audit.EventRefreshSuccess, true, p.ID, p.Email, nil, "")
	return &SessionResult{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     token,
		RefreshExpiresAt: rec.ExpiresAt,
		Principal:        p,
	}, nil
}
