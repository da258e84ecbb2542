package flows

import (
	"context"

	"github.com/MrEthical07/goFleet/jwt"
	"github.com/MrEthical07/goFleet/tokenstore"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureNotActive
	RefreshFailureUserLookup
	RefreshFailureRevoke
	RefreshFailureReuse
	RefreshFailureIssue
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure  RefreshFailureKind
	Err      error
	UserID   string
	TenantID string
	RecordID string
	Tokens   TokenPair
	State    AuthState
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	VerifyRefresh func(token string) (subject string, err error)
	Tokens        tokenstore.Store
	GetUserByID   func(context.Context, string) (UserRecord, error)
	AtomicRevoke  bool
	Observe       Observer
}

// RunRefresh rotates a refresh token: verify, look up the active record,
// revoke it, then issue a new pair. The old record is revoked before the new
// pair exists, so a consumed token can never rotate again.
//
// With AtomicRevoke the revoke is a compare-and-revoke and only one of several
// concurrent callers presenting the same token proceeds. Without it two
// callers that both pass FindActive before either revokes each get a pair.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps, issue IssueDeps) RefreshResult {
	m := newMachine(StateAuthenticated, deps.Observe)

	userID, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		m.moveTo(StateRefreshing)
		return RefreshResult{Failure: RefreshFailureDecode, Err: err, State: m.moveTo(StateUnauthenticated)}
	}
	m.userID = userID
	m.moveTo(StateRefreshing)

	fail := func(kind RefreshFailureKind, err error, res RefreshResult) RefreshResult {
		res.Failure = kind
		res.Err = err
		res.UserID = userID
		res.State = m.moveTo(StateUnauthenticated)
		return res
	}

	rec, err := deps.Tokens.FindActive(ctx, refreshToken, jwt.KindRefresh, userID)
	if err != nil {
		return fail(RefreshFailureNotActive, err, RefreshResult{})
	}

	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		return fail(RefreshFailureUserLookup, err, RefreshResult{RecordID: rec.ID})
	}

	if deps.AtomicRevoke {
		won, err := deps.Tokens.RevokeIfActive(ctx, rec.ID)
		if err != nil {
			return fail(RefreshFailureRevoke, err, RefreshResult{RecordID: rec.ID, TenantID: user.TenantID})
		}
		if !won {
			return fail(RefreshFailureReuse, tokenstore.ErrNotFound, RefreshResult{RecordID: rec.ID, TenantID: user.TenantID})
		}
	} else if err := deps.Tokens.Revoke(ctx, rec.ID); err != nil {
		return fail(RefreshFailureRevoke, err, RefreshResult{RecordID: rec.ID, TenantID: user.TenantID})
	}

	// The old record is consumed; cancelling now would burn the token
	// without handing out its replacement.
	tokens, err := RunIssueTokenPair(context.WithoutCancel(ctx), user.UserID, issue)
	if err != nil {
		return fail(RefreshFailureIssue, err, RefreshResult{RecordID: rec.ID, TenantID: user.TenantID})
	}

	return RefreshResult{
		UserID:   userID,
		TenantID: user.TenantID,
		RecordID: rec.ID,
		Tokens:   tokens,
		State:    m.moveTo(StateAuthenticated),
	}
}
