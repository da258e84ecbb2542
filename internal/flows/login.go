package flows

import (
	"context"
	"errors"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureUnknownUser
	LoginFailureLookup
	LoginFailurePasswordMismatch
	LoginFailureVerify
	LoginFailureIssue
)

// LoginResult carries the authenticated user and tokens or failure metadata.
type LoginResult struct {
	Failure  LoginFailureKind
	Err      error
	User     UserRecord
	Tokens   TokenPair
	Rehashed bool
	State    AuthState
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	GetUserByHandle      func(context.Context, string) (UserRecord, error)
	UserNotFound         error
	VerifyPassword       func(password, hash string) (bool, error)
	DummyVerify          func(password string)
	UpgradeOnLogin       bool
	PasswordNeedsUpgrade func(hash string) (bool, error)
	HashPassword         func(string) (string, error)
	UpdatePasswordHash   func(ctx context.Context, userID, hash string) error
	Warn                 func(msg string, err error)
	Observe              Observer
}

// RunLogin verifies a handle/password pair and issues a token pair.
//
// Unknown handles still run a dummy password verification so the response
// time does not reveal whether the handle exists.
func RunLogin(ctx context.Context, handle, password string, deps LoginDeps, issue IssueDeps) LoginResult {
	user, err := deps.GetUserByHandle(ctx, NormalizeHandle(handle))
	if err != nil {
		if deps.DummyVerify != nil {
			deps.DummyVerify(password)
		}
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return LoginResult{Failure: LoginFailureUnknownUser, Err: err, State: StateUnauthenticated}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err, State: StateUnauthenticated}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return LoginResult{Failure: LoginFailureVerify, Err: err, User: user, State: StateUnauthenticated}
	}
	if !ok {
		return LoginResult{Failure: LoginFailurePasswordMismatch, User: user, State: StateUnauthenticated}
	}

	rehashed := maybeUpgradeHash(ctx, user, password, deps)

	tokens, err := RunIssueTokenPair(ctx, user.UserID, issue)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, User: user, State: StateUnauthenticated}
	}

	m := newMachine(StateUnauthenticated, deps.Observe)
	m.userID = user.UserID
	return LoginResult{User: user, Tokens: tokens, Rehashed: rehashed, State: m.moveTo(StateAuthenticated)}
}

// maybeUpgradeHash re-hashes with current parameters after a successful
// verification. Failures are logged and never fail the login.
func maybeUpgradeHash(ctx context.Context, user UserRecord, password string, deps LoginDeps) bool {
	if !deps.UpgradeOnLogin || deps.PasswordNeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return false
	}
	needs, err := deps.PasswordNeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return false
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		if deps.Warn != nil {
			deps.Warn("password rehash failed", err)
		}
		return false
	}
	if err := deps.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
		if deps.Warn != nil {
			deps.Warn("password hash update failed", err)
		}
		return false
	}
	return true
}
