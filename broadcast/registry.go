package broadcast

import (
	"context"
	"errors"
	"sync"

	goFleet "github.com/MrEthical07/goFleet"
	"go.uber.org/zap"
)

var (
	// ErrChannelClosed is returned by Send after the connection went away.
	ErrChannelClosed = errors.New("channel closed")
	// ErrChannelFull is returned by Send when the outbound buffer is full.
	ErrChannelFull = errors.New("channel buffer full")
)

// Channel is one live connection. Send must not block.
type Channel interface {
	Send(msg []byte) error
}

// Publisher delivers an event to every live connection of a tenant and
// reports how many received it.
type Publisher interface {
	Publish(ctx context.Context, tenantID string, ev Event) int
}

type registration struct {
	tenantID string
	ch       Channel
}

// Registry maps user ids to their live channel. The zero value is not usable;
// call NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]registration
	logger  *zap.Logger
	metrics *goFleet.Metrics
}

func NewRegistry(logger *zap.Logger, metrics *goFleet.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		conns:   make(map[string]registration),
		logger:  logger.With(zap.String("component", "broadcast")),
		metrics: metrics,
	}
}

// Register makes ch the user's channel and returns the one it replaced, or
// nil. The caller owns closing the replaced channel.
func (r *Registry) Register(userID, tenantID string, ch Channel) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.conns[userID]
	r.conns[userID] = registration{tenantID: tenantID, ch: ch}
	if !ok {
		return nil
	}
	return prev.ch
}

// Unregister removes whatever channel the user has and returns it.
func (r *Registry) Unregister(userID string) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.conns[userID]
	if !ok {
		return nil
	}
	delete(r.conns, userID)
	return prev.ch
}

// Release removes the user's registration only while it still points at ch,
// so a closing connection cannot evict the one that replaced it.
func (r *Registry) Release(userID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.conns[userID]
	if !ok || cur.ch != ch {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Len returns the number of registered users across all tenants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// TenantSize returns the number of live channels for tenantID.
func (r *Registry) TenantSize(tenantID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, reg := range r.conns {
		if reg.tenantID == tenantID {
			n++
		}
	}
	return n
}

func (r *Registry) snapshot(tenantID string) map[string]Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Channel)
	for userID, reg := range r.conns {
		if reg.tenantID == tenantID {
			out[userID] = reg.ch
		}
	}
	return out
}

// Publish sends ev to every channel registered for tenantID and returns the
// number of successful sends. Failing channels are skipped. Delivery is not
// cut short by ctx: sends never block, and a write that already committed
// must reach every live connection.
func (r *Registry) Publish(_ context.Context, tenantID string, ev Event) int {
	msg, err := ev.Encode()
	if err != nil {
		r.logger.Warn("dropping unencodable event", zap.String("type", ev.Type), zap.Error(err))
		return 0
	}
	r.metrics.Inc(goFleet.MetricBroadcastPublished)
	return r.deliver(tenantID, ev.Type, msg)
}

func (r *Registry) deliver(tenantID, typ string, msg []byte) int {
	delivered := 0
	for userID, ch := range r.snapshot(tenantID) {
		if err := ch.Send(msg); err != nil {
			r.metrics.Inc(goFleet.MetricBroadcastDropped)
			r.logger.Debug("broadcast skipped channel",
				zap.String("tenant_id", tenantID),
				zap.String("user_id", userID),
				zap.String("type", typ),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	if delivered > 0 {
		r.metrics.Add(goFleet.MetricBroadcastDelivered, uint64(delivered))
	}
	return delivered
}
