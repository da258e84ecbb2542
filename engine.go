package goFleet

import (
	"time"

	"github.com/MrEthical07/goFleet/internal/flows"
	"github.com/MrEthical07/goFleet/jwt"
	"github.com/MrEthical07/goFleet/password"
	"github.com/MrEthical07/goFleet/tokenstore"
	"go.uber.org/zap"
)

// Engine runs the token lifecycle. Build one with [Builder]; all methods are
// safe for concurrent use.
type Engine struct {
	config    Config
	users     UserStore
	tokens    tokenstore.Store
	codec     *jwt.Codec
	hasher    password.Hasher
	dummyHash string
	flow      flows.Service
	audit     *auditDispatcher
	metrics   *Metrics
	logger    *zap.Logger
	observer  StateObserver
	now       func() time.Time
}

// Close drains pending audit events. It does not close the stores.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Metrics returns the engine's counter set. The HTTP layer, response cache
// and broadcaster record into the same set.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot copies the current counters and histogram buckets. A nil
// engine returns empty maps.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeTransition(userID string, from, to flows.AuthState) {
	e.logger.Debug("auth state transition",
		zap.String("user_id", userID),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	if e.observer != nil {
		e.observer(userID, from.String(), to.String())
	}
}

func toFlowUser(u UserRecord) flows.UserRecord {
	return flows.UserRecord{
		UserID:       u.ID,
		Handle:       u.Handle,
		TenantID:     u.TenantID,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func fromFlowUser(u flows.UserRecord) UserRecord {
	return UserRecord{
		ID:           u.UserID,
		Handle:       u.Handle,
		TenantID:     u.TenantID,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func fromFlowPair(p flows.TokenPair) TokenPair {
	return TokenPair{
		Access:  IssuedToken{Token: p.Access.Token, ExpiresAt: p.Access.ExpiresAt},
		Refresh: IssuedToken{Token: p.Refresh.Token, ExpiresAt: p.Refresh.ExpiresAt},
	}
}
