package flows

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/goFleet/jwt"
)

// UserRecord is the flow-local user model.
type UserRecord struct {
	UserID       string
	Handle       string
	TenantID     string
	PasswordHash string
	CreatedAt    time.Time
}

// IssuedToken is a signed token with its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenPair is the flow-local token pair shape.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Issue        IssueDeps
	Register     RegisterDeps
	Login        LoginDeps
	Refresh      RefreshDeps
	Logout       LogoutDeps
	Authenticate AuthenticateDeps
}

// IssueDeps captures token pair issuance dependencies.
type IssueDeps struct {
	Now        func() time.Time
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Sign       func(subject string, kind jwt.Kind, expiresAt time.Time) (string, error)
	Persist    func(ctx context.Context, token, userID string, expiresAt time.Time) error
}

// NormalizeHandle trims and case-folds a login handle.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// RunIssueTokenPair signs an access and a refresh token for userID and
// persists the refresh token. The pair is only returned once persisted.
func RunIssueTokenPair(ctx context.Context, userID string, deps IssueDeps) (TokenPair, error) {
	now := deps.Now()
	accessExp := now.Add(deps.AccessTTL)
	refreshExp := now.Add(deps.RefreshTTL)

	access, err := deps.Sign(userID, jwt.KindAccess, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := deps.Sign(userID, jwt.KindRefresh, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	if err := deps.Persist(ctx, refresh, userID, refreshExp); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		Access:  IssuedToken{Token: access, ExpiresAt: accessExp},
		Refresh: IssuedToken{Token: refresh, ExpiresAt: refreshExp},
	}, nil
}
