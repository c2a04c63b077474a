package flows

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/jwt"
)

// LogoutErrors carries host-level sentinel errors.
type LogoutErrors struct {
	EngineNotReady          error
	RefreshStoreUnavailable error
	RevocationUnavailable   error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	VerifyAccess func(token string) (*jwt.Claims, error)
	// Blacklist reports whether an entry was written. false with a nil error
	// means the store skipped the write under a fail-open policy.
	Blacklist     func(ctx context.Context, token string, expiresAt time.Time) (bool, error)
	DeleteRefresh func(ctx context.Context, token string) (bool, error)
	DeleteAll     func(ctx context.Context, principalID string) (int64, error)

	Observability
	Errors LogoutErrors
}

// RunLogout blacklists accessToken (when it still verifies) and deletes the
// refresh token row. It reports whether a refresh row was deleted. The refresh
// row is removed even when blacklisting fails; that failure is returned after.
func RunLogout(ctx context.Context, refreshToken, accessToken string, deps LogoutDeps) (bool, error) {
	if deps.VerifyAccess == nil || deps.Blacklist == nil || deps.DeleteRefresh == nil {
		return false, deps.Errors.EngineNotReady
	}
	deps.fill()

	var (
		principalID string
		revokeErr   error
	)
	if accessToken != "" {
		claims, err := deps.VerifyAccess(accessToken)
		switch {
		case err != nil:
			// Expired or forged tokens are already unusable; nothing to write.
		default:
			principalID = claims.Subject
			written, err := deps.Blacklist(ctx, accessToken, claims.ExpiresAt)
			switch {
			case err != nil:
				revokeErr = fmt.Errorf("%w: %v", deps.Errors.RevocationUnavailable, err)
				deps.EmitAudit(ctx, audit.EventTokenRevoked, false, principalID, claims.Email, revokeErr, "revocation_unavailable")
			case !written:
				deps.EmitAudit(ctx, audit.EventTokenRevoked, false, principalID, claims.Email, nil, "revocation_unavailable")
			default:
				deps.MetricInc(metrics.RevocationWrite)
				deps.EmitAudit(ctx, audit.EventTokenRevoked, true, principalID, claims.Email, nil, "logout")
			}
		}
	}

	deleted := false
	if refreshToken != "" {
		var err error
		deleted, err = deps.DeleteRefresh(ctx, refreshToken)
		if err != nil {
			deps.Warn("refresh token delete failed", "principal_id", principalID, "error", err)
			return false, fmt.Errorf("%w: %v", deps.Errors.RefreshStoreUnavailable, err)
		}
	}

	if deleted {
		deps.MetricInc(metrics.Logout)
	}
	deps.EmitAudit(ctx, audit.EventLogout, deleted, principalID, "", revokeErr, "")
	return deleted, revokeErr
}

// RunLogoutAll deletes every refresh token of principalID. Access tokens
// already issued stay valid until they expire.
func RunLogoutAll(ctx context.Context, principalID string, deps LogoutDeps) (int64, error) {
	if deps.DeleteAll == nil {
		return 0, deps.Errors.EngineNotReady
	}
	deps.fill()

	n, err := deps.DeleteAll(ctx, principalID)
	if err != nil {
		deps.Warn("refresh bulk delete failed", "principal_id", principalID, "error", err)
		return 0, fmt.Errorf("%w: %v", deps.Errors.RefreshStoreUnavailable, err)
	}
	deps.MetricInc(metrics.LogoutAll)
	deps.EmitAudit(ctx, audit.EventLogoutAll, true, principalID, "", nil, "deleted="+strconv.FormatInt(n, 10))
	return n, nil
}
