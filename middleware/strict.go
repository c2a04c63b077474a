package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/authcore"
)

// RequirePermissions re-reads the principal behind the guarded request and
// requires every one of perms. Names are checked against the engine's
// permission registry up front, so a typo fails at startup rather than
// denying every request.
func RequirePermissions(engine *authcore.Engine, perms ...string) (func(http.Handler) http.Handler, error) {
	if engine == nil {
		return nil, authcore.ErrEngineNotReady
	}
	if err := engine.Permissions().Check(perms...); err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}

			p, err := engine.Authorize(r.Context(), claims, perms...)
			switch {
			case err == nil:
			case errors.Is(err, authcore.ErrPermissionDenied), errors.Is(err, authcore.ErrAccountDisabled):
				forbidden(w)
				return
			case errors.Is(err, authcore.ErrCredentialStoreUnavailable):
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			default:
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}
