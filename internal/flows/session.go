package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/refresh"
)

// SessionResult is the token pair handed back to callers.
type SessionResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Principal        *PrincipalRecord
}

// SessionErrors carries host-level sentinel errors.
type SessionErrors struct {
	EngineNotReady          error
	TokenIssue              error
	RefreshStoreUnavailable error
}

// SessionDeps captures token issuance dependencies.
type SessionDeps struct {
	IssueAccess  func(p *PrincipalRecord) (string, time.Time, error)
	IssueRefresh func(ctx context.Context, principalID string) (refresh.Record, error)

	Observability
	Errors SessionErrors
}

// RunIssueSession mints an access token and persists a new refresh token for
// an authenticated principal.
func RunIssueSession(ctx context.Context, p *PrincipalRecord, deps SessionDeps) (*SessionResult, error) {
	if deps.IssueAccess == nil || deps.IssueRefresh == nil || p == nil {
		return nil, deps.Errors.EngineNotReady
	}
	deps.fill()

	access, accessExp, err := deps.IssueAccess(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.TokenIssue, err)
	}

	rec, err := deps.IssueRefresh(ctx, p.ID)
	if err != nil {
		deps.Warn("refresh token persist failed", "principal_id", p.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", deps.Errors.RefreshStoreUnavailable, err)
	}

	return &SessionResult{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rec.Token,
		RefreshExpiresAt: rec.ExpiresAt,
		Principal:        p,
	}, nil
}
