package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Issue.Sign != nil && s.deps.Authenticate.VerifyAccess != nil
}

func (s Service) IssueTokenPair(ctx context.Context, userID string) (TokenPair, error) {
	return RunIssueTokenPair(ctx, userID, s.deps.Issue)
}

func (s Service) Register(ctx context.Context, req RegisterRequest) RegisterResult {
	return RunRegister(ctx, req, s.deps.Register, s.deps.Issue)
}

func (s Service) Login(ctx context.Context, handle, password string) LoginResult {
	return RunLogin(ctx, handle, password, s.deps.Login, s.deps.Issue)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh, s.deps.Issue)
}

func (s Service) Logout(ctx context.Context, refreshToken string) LogoutResult {
	return RunLogout(ctx, refreshToken, s.deps.Logout)
}

func (s Service) Authenticate(ctx context.Context, bearer string) AuthenticateResult {
	return RunAuthenticate(ctx, bearer, s.deps.Authenticate)
}
