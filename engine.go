package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/revocation"
)

// Engine is the session manager. It is safe for concurrent use once
// returned by [Builder.Build].
type Engine struct {
	config     Config
	logger     *slog.Logger
	now        func() time.Time
	principals PrincipalStore
	refresh    refresh.Store
	revocation *revocation.RedisStore
	codec      *jwt.Codec
	hasher     password.Hasher
	dummyHash  string
	registry   *permission.Registry
	audit      *audit.Dispatcher
	metrics    *metrics.Metrics
	flow       flows.Service

	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
	sweepClosed bool
	closeOnce   sync.Once
}

// Close stops the sweeper and flushes the audit dispatcher. It does not
// close the Redis client or principal store, which the caller owns.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.sweepMu.Lock()
		e.sweepClosed = true
		e.stopSweeperLocked()
		e.sweepMu.Unlock()
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Permissions returns the frozen registry of known permission names.
func (e *Engine) Permissions() *permission.Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

// HashPassword hashes plaintext with the engine's primary scheme. Principal
// creation is outside the engine; this helper keeps stored hashes in the
// format Authenticate verifies.
func (e *Engine) HashPassword(plaintext string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	return e.hasher.Hash(plaintext)
}

/*
====================================
SESSION LIFECYCLE
====================================
*/

// Authenticate verifies email and password and opens a session. Client IP
// and user agent are taken from ctx (see [WithClientIP], [WithUserAgent])
// and recorded on audit events.
//
// Failures are ErrInvalidCredentials, ErrAccountLocked, ErrAccountDisabled,
// or a wrapped store error. Pass the result through [PublicError] before
// showing it to clients.
func (e *Engine) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return toAuthResult(res), nil
}

// Refresh mints a new access token from the principal's current state. The
// refresh token is returned unchanged.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return toAuthResult(res), nil
}

// Logout revokes accessToken (if non-empty and still valid) and deletes the
// refresh token. It reports whether a refresh row was deleted, so a repeated
// call returns false without error.
//
// Under a fail-closed revocation policy an unreachable revocation store
// yields ErrRevocationUnavailable, but the refresh row is deleted first.
func (e *Engine) Logout(ctx context.Context, refreshToken, accessToken string) (bool, error) {
	if e == nil || !e.flow.Initialized() {
		return false, ErrEngineNotReady
	}
	return e.flow.Logout(ctx, refreshToken, accessToken)
}

// ForceLogoutAll deletes every refresh token of principalID and returns how
// many were removed. Access tokens already issued stay valid until expiry.
func (e *Engine) ForceLogoutAll(ctx context.Context, principalID string) (int64, error) {
	if e == nil || !e.flow.Initialized() {
		return 0, ErrEngineNotReady
	}
	return e.flow.LogoutAll(ctx, principalID)
}

/*
====================================
TOKENS
====================================
*/

// IsRevoked reports whether accessToken has been blacklisted. Under the
// default fail-open policy an unreachable store reports false.
func (e *Engine) IsRevoked(ctx context.Context, accessToken string) (bool, error) {
	if e == nil || e.revocation == nil {
		return false, ErrEngineNotReady
	}
	return e.revocation.IsBlacklisted(ctx, accessToken)
}

// VerifyAccessToken checks signature and expiry without any I/O.
func (e *Engine) VerifyAccessToken(token string) (*Claims, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	return e.codec.Verify(token)
}

// Validate is the per-request check: revocation first, then signature and
// expiry.
func (e *Engine) Validate(ctx context.Context, token string) (*Claims, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	return e.flow.Validate(ctx, token)
}

/*
====================================
AUTHORIZATION
====================================
*/

// ResolvePermissions returns the union of permissions over p's roles.
func (e *Engine) ResolvePermissions(p *Principal) PermissionSet {
	if p == nil {
		return PermissionSet{}
	}
	return permission.Resolve(p.Roles)
}

func (e *Engine) HasPermission(p *Principal, name string) bool {
	return p != nil && permission.HasPermission(p.Roles, name)
}

func (e *Engine) HasRole(p *Principal, name string) bool {
	return p != nil && permission.HasRole(p.Roles, name)
}

// Authorize re-reads the principal behind claims and requires every one of
// perms. Token role claims are not trusted here, so grants revoked after
// issuance take effect immediately.
func (e *Engine) Authorize(ctx context.Context, claims *Claims, perms ...string) (*Principal, error) {
	if e == nil || e.principals == nil {
		return nil, ErrEngineNotReady
	}
	if claims == nil || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}

	sctx, cancel := e.storeContext(ctx)
	defer cancel()

	p, err := e.principals.FindByID(sctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			e.metricInc(MetricAuthorizeDenied)
			return nil, ErrPermissionDenied
		}
		return nil, fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}
	if p == nil {
		e.metricInc(MetricAuthorizeDenied)
		return nil, ErrPermissionDenied
	}
	if !p.Enabled {
		e.metricInc(MetricAuthorizeDenied)
		return nil, ErrAccountDisabled
	}
	if !permission.HasAll(p.Roles, perms...) {
		e.metricInc(MetricAuthorizeDenied)
		return nil, ErrPermissionDenied
	}
	return p, nil
}

/*
====================================
SWEEPER
====================================
*/

// SweepExpiredRefreshTokens deletes refresh rows that expired before now
// minus the configured retention.
func (e *Engine) SweepExpiredRefreshTokens(ctx context.Context) (int64, error) {
	if e == nil || e.refresh == nil {
		return 0, ErrEngineNotReady
	}
	cutoff := e.now().Add(-e.config.Refresh.Retention)

	n, err := e.refresh.DeleteExpired(ctx, cutoff)
	if err != nil {
		e.logger.Warn("refresh sweep failed", "error", err)
		return n, fmt.Errorf("%w: %v", ErrRefreshStoreUnavailable, err)
	}
	if n > 0 && e.metrics != nil {
		e.metrics.Add(MetricSweepDeleted, uint64(n))
		e.logger.Debug("refresh sweep", "deleted", n)
	}
	return n, nil
}

// StartSweeper runs SweepExpiredRefreshTokens every interval until ctx is
// done or Close is called. A non-positive interval uses
// Config.Refresh.SweepInterval. Calling it again replaces the running sweeper.
// It reports whether a sweeper was started; after Close it never starts one.
func (e *Engine) StartSweeper(ctx context.Context, interval time.Duration) bool {
	if e == nil {
		return false
	}
	if interval <= 0 {
		interval = e.config.Refresh.SweepInterval
	}
	if interval <= 0 {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	if e.sweepClosed {
		return false
	}
	e.stopSweeperLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.sweepCancel, e.sweepDone = cancel, done
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sctx, cancel := e.storeContext(ctx)
				_, _ = e.SweepExpiredRefreshTokens(sctx)
				cancel()
			}
		}
	}()
	return true
}

// stopSweeperLocked cancels the running sweeper and waits for it to exit.
// The caller holds sweepMu.
func (e *Engine) stopSweeperLocked() {
	if e.sweepCancel == nil {
		return
	}
	e.sweepCancel()
	<-e.sweepDone
	e.sweepCancel, e.sweepDone = nil, nil
}

func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, e.config.Timeouts.Store)
}

func toAuthResult(res *flows.SessionResult) *AuthResult {
	out := &AuthResult{
		AccessToken:      res.AccessToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshToken:     res.RefreshToken,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}
	if res.Principal != nil {
		out.Principal = toPrincipal(res.Principal).View()
	}
	return out
}
