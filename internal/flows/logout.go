package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goFleet/jwt"
	"github.com/MrEthical07/goFleet/tokenstore"
)

// LogoutFailureKind classifies logout failures.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureDecode
	LogoutFailureLookup
	LogoutFailureRevoke
)

// LogoutResult reports the outcome of RunLogout.
type LogoutResult struct {
	Failure  LogoutFailureKind
	Err      error
	UserID   string
	RecordID string
	// AlreadyRevoked is set when the token verified but had no active record.
	AlreadyRevoked bool
	State          AuthState
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	VerifyRefresh func(token string) (subject string, err error)
	Tokens        tokenstore.Store
	Observe       Observer
}

// RunLogout revokes the record behind a refresh token. A verified token
// without an active record is treated as already logged out.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	userID, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureDecode, Err: err, State: StateUnauthenticated}
	}

	rec, err := deps.Tokens.FindActive(ctx, refreshToken, jwt.KindRefresh, userID)
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return LogoutResult{UserID: userID, AlreadyRevoked: true, State: StateUnauthenticated}
		}
		return LogoutResult{Failure: LogoutFailureLookup, Err: err, UserID: userID, State: StateUnauthenticated}
	}

	if err := deps.Tokens.Revoke(ctx, rec.ID); err != nil {
		return LogoutResult{Failure: LogoutFailureRevoke, Err: err, UserID: userID, RecordID: rec.ID, State: StateAuthenticated}
	}

	m := newMachine(StateAuthenticated, deps.Observe)
	m.userID = userID
	return LogoutResult{UserID: userID, RecordID: rec.ID, State: m.moveTo(StateUnauthenticated)}
}
