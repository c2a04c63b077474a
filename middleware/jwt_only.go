package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authcore"
)

// RequireJWTOnly checks signature and expiry without consulting the
// revocation store. Tokens revoked by logout stay accepted until they
// expire, so use it only where that window is acceptable.
func RequireJWTOnly(engine *authcore.Engine) func(http.Handler) http.Handler {
	if engine == nil {
		return reject(http.StatusUnauthorized)
	}
	return guard(func(_ context.Context, token string) (*authcore.Claims, error) {
		return engine.VerifyAccessToken(token)
	})
}
