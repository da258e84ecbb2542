package goFleet

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRegisterSuccess      = "register_success"
	auditEventRegisterFailure      = "register_failure"
	auditEventRegisterDuplicate    = "register_duplicate"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventLogout               = "logout"
	auditEventRateLimitTriggered   = "rate_limit_triggered"
)

// AuditErrorCode is the coarse failure class recorded on audit events. Raw
// error strings never reach the sink.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrValidation         AuditErrorCode = "validation_failed"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrUnauthenticated    AuditErrorCode = "unauthenticated"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrInternal           AuditErrorCode = "internal_error"
)

var errRefreshReuse = errors.New("refresh token already consumed")

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	tenantID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TenantID:  tenantID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// RecordRateLimit counts and audits a rejected request. The HTTP layer calls
// it when a client exceeds its auth route budget.
func (e *Engine) RecordRateLimit(ctx context.Context, scope string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrDuplicateIdentity):
		return auditErrDuplicate
	case errors.Is(err, ErrValidationFailed):
		return auditErrValidation
	case errors.Is(err, errRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrReAuthRequired):
		return auditErrInvalidToken
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	default:
		return auditErrInternal
	}
}

func (e *Engine) observeLatency(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, e.now().Sub(start))
}
