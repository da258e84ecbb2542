package flows

import (
	"context"
	"strings"
	"unicode/utf8"
)

// RegisterFailureKind classifies registration failures for root-level mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureValidation
	RegisterFailureHash
	RegisterFailureDuplicate
	RegisterFailureCreate
	RegisterFailureIssue
)

// RegisterRequest is the flow-local registration input.
type RegisterRequest struct {
	Handle   string
	Password string
	TenantID string
}

// RegisterResult carries the created user and tokens or failure metadata.
type RegisterResult struct {
	Failure RegisterFailureKind
	Err     error
	Reason  string
	User    UserRecord
	Tokens  TokenPair
	State   AuthState
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	MinPasswordLength int
	NewUserID         func() string
	HashPassword      func(string) (string, error)
	CreateUser        func(context.Context, UserRecord) (UserRecord, error)
	IsDuplicate       func(error) bool
	Observe           Observer
}

// RunRegister validates req, stores the user and issues the first token pair.
// A duplicate handle leaves the existing record untouched.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps, issue IssueDeps) RegisterResult {
	handle := NormalizeHandle(req.Handle)
	tenantID := strings.TrimSpace(req.TenantID)

	if reason := validateRegistration(handle, req.Password, tenantID, deps.MinPasswordLength); reason != "" {
		return RegisterResult{Failure: RegisterFailureValidation, Reason: reason, State: StateUnauthenticated}
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureHash, Err: err, State: StateUnauthenticated}
	}

	user, err := deps.CreateUser(ctx, UserRecord{
		UserID:       deps.NewUserID(),
		Handle:       handle,
		TenantID:     tenantID,
		PasswordHash: hash,
	})
	if err != nil {
		if deps.IsDuplicate != nil && deps.IsDuplicate(err) {
			return RegisterResult{Failure: RegisterFailureDuplicate, Err: err, State: StateUnauthenticated}
		}
		return RegisterResult{Failure: RegisterFailureCreate, Err: err, State: StateUnauthenticated}
	}

	tokens, err := RunIssueTokenPair(ctx, user.UserID, issue)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureIssue, Err: err, User: user, State: StateUnauthenticated}
	}

	m := newMachine(StateUnauthenticated, deps.Observe)
	m.userID = user.UserID
	return RegisterResult{User: user, Tokens: tokens, State: m.moveTo(StateAuthenticated)}
}

func validateRegistration(handle, password, tenantID string, minLen int) string {
	switch {
	case handle == "":
		return "username is required"
	case tenantID == "":
		return "organization is required"
	case password == "":
		return "password is required"
	case utf8.RuneCountInString(password) < minLen:
		return "password is too short"
	}
	return ""
}
