package goFleet

import (
	"context"
	"time"
)

// UserRecord is the stored representation of a registered user.
//
// Handle is unique across the deployment and always stored trimmed and
// lower-cased. ID, Handle and TenantID never change after creation;
// PasswordHash changes only when the credential (or its hash parameters)
// changes.
type UserRecord struct {
	ID           string    `json:"id"`
	Handle       string    `json:"username"`
	TenantID     string    `json:"organization"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserStore is the persistence contract the Engine relies on for users.
//
// CreateUser must return an error matching [ErrDuplicateIdentity] when the
// handle is already taken, leaving the existing record untouched. Lookups
// return [ErrUserNotFound] for unknown users.
type UserStore interface {
	CreateUser(ctx context.Context, user UserRecord) (UserRecord, error)
	GetUserByHandle(ctx context.Context, handle string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// RegisterRequest carries the input of [Engine.Register].
type RegisterRequest struct {
	Handle   string `json:"username"`
	Password string `json:"password"`
	TenantID string `json:"organization"`
}

// IssuedToken is a signed token together with its expiry.
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires"`
}

// TokenPair is returned by login, registration and refresh.
type TokenPair struct {
	Access  IssuedToken `json:"access"`
	Refresh IssuedToken `json:"refresh"`
}

// Principal is the identity attached to an authenticated request.
type Principal struct {
	UserID   string
	Handle   string
	TenantID string
}

// StateObserver receives every authentication state transition the Engine
// performs, using the names "unauthenticated", "authenticated" and
// "refreshing".
type StateObserver func(userID, from, to string)
