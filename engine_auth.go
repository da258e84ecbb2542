package goFleet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goFleet/internal/flows"
	"go.uber.org/zap"
)

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

// Register creates a user and issues its first token pair.
//
// Validation problems return an error matching [ErrValidationFailed]; a taken
// handle returns [ErrDuplicateIdentity] and leaves the existing user as it
// was. Store and signing failures are logged and returned as opaque errors.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (UserRecord, TokenPair, error) {
	if !e.ready() {
		return UserRecord{}, TokenPair{}, ErrEngineNotReady
	}

	res := e.flow.Register(ctx, flows.RegisterRequest{
		Handle:   req.Handle,
		Password: req.Password,
		TenantID: req.TenantID,
	})

	switch res.Failure {
	case flows.RegisterFailureNone:
		e.metricInc(MetricRegisterSuccess)
		e.emitAudit(ctx, auditEventRegisterSuccess, true, res.User.UserID, res.User.TenantID, nil, nil)
		return fromFlowUser(res.User), fromFlowPair(res.Tokens), nil
	case flows.RegisterFailureValidation:
		e.metricInc(MetricRegisterFailure)
		err := fmt.Errorf("%w: %s", ErrValidationFailed, res.Reason)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", strings.TrimSpace(req.TenantID), err, nil)
		return UserRecord{}, TokenPair{}, err
	case flows.RegisterFailureDuplicate:
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", strings.TrimSpace(req.TenantID), ErrDuplicateIdentity, nil)
		return UserRecord{}, TokenPair{}, ErrDuplicateIdentity
	default:
		e.metricInc(MetricRegisterFailure)
		e.logger.Error("registration failed", zap.Int("failure", int(res.Failure)), zap.Error(res.Err))
		e.emitAudit(ctx, auditEventRegisterFailure, false, res.User.UserID, strings.TrimSpace(req.TenantID), res.Err, nil)
		return UserRecord{}, TokenPair{}, fmt.Errorf("register: %w", res.Err)
	}
}

// Login verifies a handle/password pair and issues a token pair.
//
// Every failure, including an unknown handle or an unavailable user store,
// returns [ErrInvalidCredentials] so callers cannot enumerate handles.
func (e *Engine) Login(ctx context.Context, handle, password string) (UserRecord, TokenPair, error) {
	if !e.ready() {
		return UserRecord{}, TokenPair{}, ErrEngineNotReady
	}

	res := e.flow.Login(ctx, handle, password)
	if res.Failure != flows.LoginFailureNone {
		e.metricInc(MetricLoginFailure)
		switch res.Failure {
		case flows.LoginFailureLookup, flows.LoginFailureVerify, flows.LoginFailureIssue:
			e.logger.Warn("login backend failure", zap.Int("failure", int(res.Failure)), zap.Error(res.Err))
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, res.User.UserID, res.User.TenantID, ErrInvalidCredentials, nil)
		return UserRecord{}, TokenPair{}, ErrInvalidCredentials
	}

	e.metricInc(MetricLoginSuccess)
	if res.Rehashed {
		e.metricInc(MetricPasswordRehashed)
	}
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.User.UserID, res.User.TenantID, nil, nil)
	return fromFlowUser(res.User), fromFlowPair(res.Tokens), nil
}

// IssueTokenPair signs a fresh access/refresh pair for user and persists the
// refresh token.
func (e *Engine) IssueTokenPair(ctx context.Context, user UserRecord) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	if user.ID == "" {
		return TokenPair{}, fmt.Errorf("%w: user id is required", ErrValidationFailed)
	}
	pair, err := e.flow.IssueTokenPair(ctx, user.ID)
	if err != nil {
		e.logger.Error("token issuance failed", zap.String("user_id", user.ID), zap.Error(err))
		return TokenPair{}, fmt.Errorf("issue token pair: %w", err)
	}
	return fromFlowPair(pair), nil
}

// Refresh rotates refreshToken into a new pair. The presented token is revoked
// before the new pair is created, so it can never rotate twice. Every failure
// returns [ErrReAuthRequired].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}

	res := e.flow.Refresh(ctx, refreshToken)
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.TenantID, nil, nil)
		return fromFlowPair(res.Tokens), nil
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshReuseDetected)
		e.logger.Warn("refresh token presented concurrently", zap.String("user_id", res.UserID), zap.String("record_id", res.RecordID))
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.UserID, res.TenantID, errRefreshReuse, nil)
	case flows.RefreshFailureRevoke, flows.RefreshFailureIssue:
		e.metricInc(MetricRefreshFailure)
		e.logger.Error("refresh rotation failed", zap.Int("failure", int(res.Failure)), zap.Error(res.Err))
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.TenantID, ErrReAuthRequired, nil)
	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.TenantID, ErrReAuthRequired, nil)
	}
	return TokenPair{}, ErrReAuthRequired
}

// Logout revokes the record behind refreshToken. Logging out an already
// revoked token succeeds. Access tokens issued earlier stay valid until they
// expire.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := e.flow.Logout(ctx, refreshToken)
	if res.Failure != flows.LogoutFailureNone {
		if res.Failure != flows.LogoutFailureDecode {
			e.logger.Error("logout failed", zap.Int("failure", int(res.Failure)), zap.Error(res.Err))
		}
		e.emitAudit(ctx, auditEventLogout, false, res.UserID, "", ErrReAuthRequired, nil)
		return ErrReAuthRequired
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, res.UserID, "", nil, func() map[string]string {
		if res.AlreadyRevoked {
			return map[string]string{"already_revoked": "true"}
		}
		return nil
	})
	return nil
}

// Authenticate verifies a bearer access token and resolves its owner.
//
// Only the signature, kind and expiry are checked; the token store is not
// consulted. Every failure returns [ErrUnauthenticated].
func (e *Engine) Authenticate(ctx context.Context, bearer string) (Principal, error) {
	if !e.ready() {
		return Principal{}, ErrEngineNotReady
	}
	start := e.now()
	defer e.observeLatency(MetricAuthenticateLatency, start)

	res := e.flow.Authenticate(ctx, bearer)
	if res.Failure != flows.AuthenticateFailureNone {
		e.metricInc(MetricAuthenticateFailure)
		if res.Failure == flows.AuthenticateFailureUserLookup && !isUserNotFound(res.Err) {
			e.logger.Warn("authenticate user lookup failed", zap.Error(res.Err))
		}
		return Principal{}, ErrUnauthenticated
	}

	e.metricInc(MetricAuthenticateSuccess)
	return Principal{
		UserID:   res.User.UserID,
		Handle:   res.User.Handle,
		TenantID: res.User.TenantID,
	}, nil
}

// Lookup returns the stored user for id.
func (e *Engine) Lookup(ctx context.Context, userID string) (UserRecord, error) {
	if !e.ready() {
		return UserRecord{}, ErrEngineNotReady
	}
	return e.users.GetUserByID(ctx, userID)
}

func isUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
