package flows

import (
	"context"

	"github.com/MrEthical07/authcore/jwt"
)

// Service is the flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Authenticate.FindByEmail != nil && s.deps.Validate.Verify != nil
}

// Login authenticates and, on success, issues a new session.
func (s Service) Login(ctx context.Context, email, password string) (*SessionResult, error) {
	p, err := RunAuthenticate(ctx, email, password, s.deps.Authenticate)
	if err != nil {
		return nil, err
	}
	return RunIssueSession(ctx, p, s.deps.Session)
}

func (s Service) Refresh(ctx context.Context, token string) (*SessionResult, error) {
	return RunRefresh(ctx, token, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, refreshToken, accessToken string) (bool, error) {
	return RunLogout(ctx, refreshToken, accessToken, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, principalID string) (int64, error) {
	return RunLogoutAll(ctx, principalID, s.deps.Logout)
}

func (s Service) Validate(ctx context.Context, token string) (*jwt.Claims, error) {
	return RunValidate(ctx, token, s.deps.Validate)
}
