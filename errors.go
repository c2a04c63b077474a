package authcore

import (
	"errors"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/revocation"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a principal's lockout window is open.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled is returned for a disabled principal after its password matched.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAuthenticationFailed is the generic form of every credential error
	// except ErrAccountLocked. See [PublicError].
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrPrincipalNotFound must be returned (or wrapped) by PrincipalStore
	// lookups that find no principal.
	ErrPrincipalNotFound = errors.New("principal not found")

	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrExpiredRefreshToken = errors.New("refresh token expired")

	// Token errors. The first three are the codec's own sentinels so callers
	// can match either name.
	ErrTokenExpired      = jwt.ErrExpired
	ErrTokenBadSignature = jwt.ErrBadSignature
	ErrTokenMalformed    = jwt.ErrMalformed
	ErrTokenRevoked      = errors.New("access token revoked")
	ErrTokenIssue        = errors.New("access token issue failed")

	ErrCredentialStoreUnavailable = errors.New("credential store unavailable")
	ErrRefreshStoreUnavailable    = errors.New("refresh store unavailable")
	// ErrRevocationUnavailable surfaces only under a fail-closed revocation policy.
	ErrRevocationUnavailable = revocation.ErrUnavailable

	ErrPermissionDenied = errors.New("permission denied")
	ErrEngineNotReady   = errors.New("engine not initialized")
)

// PublicError maps err to what may be shown to an unauthenticated caller.
// Credential errors collapse into ErrAuthenticationFailed so the response
// does not reveal whether the email exists or the account is disabled.
// ErrAccountLocked is kept so clients can tell users to wait. Other errors
// are returned unchanged.
func PublicError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAccountLocked):
		return ErrAccountLocked
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountDisabled):
		return ErrAuthenticationFailed
	default:
		return err
	}
}

// IsTokenError reports whether err means the presented access token must be
// rejected with a 401.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenBadSignature) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenRevoked)
}
