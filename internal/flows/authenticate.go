package flows

import "context"

// AuthenticateFailureKind classifies bearer authentication failures.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureMissing
	AuthenticateFailureDecode
	AuthenticateFailureUserLookup
)

// AuthenticateResult carries the resolved user or failure metadata.
type AuthenticateResult struct {
	Failure AuthenticateFailureKind
	Err     error
	User    UserRecord
	State   AuthState
}

// AuthenticateDeps captures bearer authentication dependencies.
type AuthenticateDeps struct {
	VerifyAccess func(token string) (subject string, err error)
	GetUserByID  func(context.Context, string) (UserRecord, error)
}

// RunAuthenticate verifies an access token and resolves its subject. The token
// store is never consulted: an access token stays valid until it expires even
// after its refresh token was revoked.
func RunAuthenticate(ctx context.Context, bearer string, deps AuthenticateDeps) AuthenticateResult {
	if bearer == "" {
		return AuthenticateResult{Failure: AuthenticateFailureMissing, State: StateUnauthenticated}
	}

	userID, err := deps.VerifyAccess(bearer)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureDecode, Err: err, State: StateUnauthenticated}
	}

	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureUserLookup, Err: err, State: StateUnauthenticated}
	}

	return AuthenticateResult{User: user, State: StateAuthenticated}
}
