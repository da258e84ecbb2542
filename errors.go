package goFleet

import "errors"

var (
	// ErrInvalidCredentials is the only Login failure. Unknown handles and wrong passwords both map to it.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateIdentity reports a handle that is already taken.
	ErrDuplicateIdentity = errors.New("identity already registered")
	// ErrUnauthenticated is the only Authenticate failure. Missing, malformed and expired access tokens all map to it.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrReAuthRequired is the only Refresh and Logout failure. Invalid, expired, unknown and revoked refresh tokens all map to it.
	ErrReAuthRequired = errors.New("re-authentication required")
	// ErrNotFound reports a resource that is absent or owned by another tenant.
	ErrNotFound = errors.New("not found")
	// ErrValidationFailed reports a malformed request payload.
	ErrValidationFailed = errors.New("validation failed")
	// ErrUserNotFound is returned by UserStore implementations for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned by a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrRateLimited is returned when a caller exceeded its request budget.
	ErrRateLimited = errors.New("rate limited")
)
