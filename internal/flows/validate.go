package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/jwt"
)

// ValidateErrors carries host-level sentinel errors.
type ValidateErrors struct {
	EngineNotReady        error
	TokenRevoked          error
	TokenMalformed        error
	RevocationUnavailable error
}

// ValidateDeps captures request validation dependencies.
type ValidateDeps struct {
	Now           func() time.Time
	IsBlacklisted func(ctx context.Context, token string) (bool, error)
	Verify        func(token string) (*jwt.Claims, error)
	Observe       func(metrics.ID, time.Duration)

	Observability
	Errors ValidateErrors
}

// RunValidate checks the revocation store and then the token itself. A
// revocation store error reaches this point only under a fail-closed policy
// and rejects the token.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) (*jwt.Claims, error) {
	if deps.IsBlacklisted == nil || deps.Verify == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Observe == nil {
		deps.Observe = func(metrics.ID, time.Duration) {}
	}
	deps.fill()

	start := deps.Now()
	defer func() { deps.Observe(metrics.ValidateLatency, deps.Now().Sub(start)) }()

	if token == "" {
		deps.MetricInc(metrics.TokenVerifyFailure)
		return nil, deps.Errors.TokenMalformed
	}

	revoked, err := deps.IsBlacklisted(ctx, token)
	if err != nil {
		deps.MetricInc(metrics.TokenVerifyFailure)
		if errors.Is(err, deps.Errors.RevocationUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", deps.Errors.RevocationUnavailable, err)
	}
	if revoked {
		deps.MetricInc(metrics.RevocationHit)
		deps.MetricInc(metrics.TokenVerifyFailure)
		return nil, deps.Errors.TokenRevoked
	}

	claims, err := deps.Verify(token)
	if err != nil {
		deps.MetricInc(metrics.TokenVerifyFailure)
		return nil, err
	}
	return claims, nil
}
