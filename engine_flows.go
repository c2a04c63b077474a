package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/lockout"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/refresh"
)

func (e *Engine) initFlows() {
	obs := flows.Observability{
		MetricInc: e.metricInc,
		EmitAudit: e.emitAudit,
		Warn:      e.logger.Warn,
	}

	e.flow = flows.New(flows.Deps{
		Authenticate: flows.AuthenticateDeps{
			Policy:         e.config.lockoutPolicy(),
			Now:            e.now,
			DummyHash:      e.dummyHash,
			FindByEmail:    e.findByEmail,
			IsNotFound:     isPrincipalNotFound,
			ClearLockout:   e.clearLockout,
			RecordFailure:  e.recordFailure,
			RecordSuccess:  e.recordSuccess,
			VerifyPassword: e.hasher.Verify,
			Observability:  obs,
			Errors: flows.AuthenticateErrors{
				EngineNotReady:             ErrEngineNotReady,
				InvalidCredentials:         ErrInvalidCredentials,
				AccountLocked:              ErrAccountLocked,
				AccountDisabled:            ErrAccountDisabled,
				CredentialStoreUnavailable: ErrCredentialStoreUnavailable,
			},
		},
		Session: flows.SessionDeps{
			IssueAccess:   e.issueAccess,
			IssueRefresh:  e.issueRefresh,
			Observability: obs,
			Errors: flows.SessionErrors{
				EngineNotReady:          ErrEngineNotReady,
				TokenIssue:              ErrTokenIssue,
				RefreshStoreUnavailable: ErrRefreshStoreUnavailable,
			},
		},
		Refresh: flows.RefreshDeps{
			Now:           e.now,
			Lookup:        e.lookupRefresh,
			Delete:        e.deleteRefresh,
			FindByID:      e.findByID,
			IsNotFound:    isPrincipalNotFound,
			IssueAccess:   e.issueAccess,
			Observability: obs,
			Errors: flows.RefreshErrors{
				EngineNotReady:             ErrEngineNotReady,
				InvalidRefreshToken:        ErrInvalidRefreshToken,
				ExpiredRefreshToken:        ErrExpiredRefreshToken,
				AccountDisabled:            ErrAccountDisabled,
				RefreshStoreUnavailable:    ErrRefreshStoreUnavailable,
				CredentialStoreUnavailable: ErrCredentialStoreUnavailable,
				TokenIssue:                 ErrTokenIssue,
			},
		},
		Logout: flows.LogoutDeps{
			VerifyAccess:  e.codec.Verify,
			Blacklist:     e.revocation.Blacklist,
			DeleteRefresh: e.deleteRefresh,
			DeleteAll:     e.deleteAllRefresh,
			Observability: obs,
			Errors: flows.LogoutErrors{
				EngineNotReady:          ErrEngineNotReady,
				RefreshStoreUnavailable: ErrRefreshStoreUnavailable,
				RevocationUnavailable:   ErrRevocationUnavailable,
			},
		},
		Validate: flows.ValidateDeps{
			Now:           e.now,
			IsBlacklisted: e.revocation.IsBlacklisted,
			Verify:        e.codec.Verify,
			Observe:       e.observe,
			Observability: obs,
			Errors: flows.ValidateErrors{
				EngineNotReady:        ErrEngineNotReady,
				TokenRevoked:          ErrTokenRevoked,
				TokenMalformed:        ErrTokenMalformed,
				RevocationUnavailable: ErrRevocationUnavailable,
			},
		},
	})
}

func isPrincipalNotFound(err error) bool {
	return errors.Is(err, ErrPrincipalNotFound)
}

func (e *Engine) observe(id metrics.ID, d time.Duration) {
	if e.metrics != nil {
		e.metrics.Observe(id, d)
	}
}

/*
====================================
PRINCIPAL STORE ADAPTERS
====================================
*/

func (e *Engine) findByEmail(ctx context.Context, email string) (*flows.PrincipalRecord, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	p, err := e.principals.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPrincipalNotFound
	}
	return toRecord(p), nil
}

func (e *Engine) findByID(ctx context.Context, id string) (*flows.PrincipalRecord, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	p, err := e.principals.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPrincipalNotFound
	}
	return toRecord(p), nil
}

func (e *Engine) clearLockout(ctx context.Context, id string) error {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.principals.ClearLockout(ctx, id)
}

func (e *Engine) recordFailure(ctx context.Context, id string, now time.Time, policy lockout.Policy) (lockout.Outcome, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.principals.RecordLoginFailure(ctx, id, now, policy)
}

func (e *Engine) recordSuccess(ctx context.Context, id string, now time.Time) error {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.principals.RecordLoginSuccess(ctx, id, now)
}

/*
====================================
TOKEN ADAPTERS
====================================
*/

func (e *Engine) issueAccess(p *flows.PrincipalRecord) (string, time.Time, error) {
	return e.codec.Issue(jwt.Subject{
		ID:    p.ID,
		Email: p.Email,
		Roles: permission.RoleNames(p.Roles),
	})
}

func (e *Engine) issueRefresh(ctx context.Context, principalID string) (refresh.Record, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.refresh.Issue(ctx, principalID)
}

func (e *Engine) lookupRefresh(ctx context.Context, token string) (*refresh.Record, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.refresh.Lookup(ctx, token)
}

func (e *Engine) deleteRefresh(ctx context.Context, token string) (bool, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.refresh.Delete(ctx, token)
}

func (e *Engine) deleteAllRefresh(ctx context.Context, principalID string) (int64, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.refresh.DeleteAllForPrincipal(ctx, principalID)
}

func toRecord(p *Principal) *flows.PrincipalRecord {
	if p == nil {
		return nil
	}
	return &flows.PrincipalRecord{
		ID:                  p.ID,
		Email:               p.Email,
		PasswordHash:        p.PasswordHash,
		Enabled:             p.Enabled,
		EmailVerified:       p.EmailVerified,
		Roles:               p.Roles,
		FailedLoginAttempts: p.FailedLoginAttempts,
		LockedUntil:         p.LockedUntil,
		LastFailedLoginAt:   p.LastFailedLoginAt,
		LastLoginAt:         p.LastLoginAt,
	}
}

func toPrincipal(r *flows.PrincipalRecord) *Principal {
	if r == nil {
		return nil
	}
	return &Principal{
		ID:                  r.ID,
		Email:               r.Email,
		PasswordHash:        r.PasswordHash,
		Enabled:             r.Enabled,
		EmailVerified:       r.EmailVerified,
		Roles:               r.Roles,
		FailedLoginAttempts: r.FailedLoginAttempts,
		LockedUntil:         r.LockedUntil,
		LastFailedLoginAt:   r.LastFailedLoginAt,
		LastLoginAt:         r.LastLoginAt,
	}
}
