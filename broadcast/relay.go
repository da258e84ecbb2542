package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type envelope struct {
	Origin string `json:"origin"`
	Tenant string `json:"tenant"`
	Event  Event  `json:"event"`
}

// RedisRelay shares one tenant broadcast domain between processes. Publish
// delivers to the local Registry at once and forwards the event on
// <prefix>:<tenant>; Run feeds events from other processes into the local
// Registry. A process ignores its own messages.
type RedisRelay struct {
	registry *Registry
	redis    redis.UniversalClient
	prefix   string
	origin   string
	logger   *zap.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRedisRelay returns a relay for registry. An empty prefix selects "fleet:events".
func NewRedisRelay(client redis.UniversalClient, registry *Registry, prefix string, logger *zap.Logger) *RedisRelay {
	if prefix == "" {
		prefix = "fleet:events"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		registry: registry,
		redis:    client,
		prefix:   prefix,
		origin:   uuid.NewString(),
		logger:   logger.With(zap.String("component", "broadcast_relay")),
		ready:    make(chan struct{}),
	}
}

func (r *RedisRelay) channel(tenantID string) string {
	return r.prefix + ":" + tenantID
}

// Publish implements Publisher. A Redis failure is logged; local delivery
// has already happened by then. The Redis publish ignores cancellation of
// ctx so other processes see every event this one delivered.
func (r *RedisRelay) Publish(ctx context.Context, tenantID string, ev Event) int {
	ctx = context.WithoutCancel(ctx)
	delivered := r.registry.Publish(ctx, tenantID, ev)

	payload, err := json.Marshal(envelope{Origin: r.origin, Tenant: tenantID, Event: ev})
	if err != nil {
		r.logger.Warn("relay encode failed", zap.String("type", ev.Type), zap.Error(err))
		return delivered
	}
	if err := r.redis.Publish(ctx, r.channel(tenantID), payload).Err(); err != nil {
		r.logger.Warn("relay publish failed",
			zap.String("tenant_id", tenantID),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
	}
	return delivered
}

// Ready is closed once Run holds a live subscription.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Run subscribes to every tenant channel and relays foreign events until ctx
// is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.redis.PSubscribe(ctx, r.prefix+":*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.logger.Info("relay subscribed", zap.String("pattern", r.prefix+":*"))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("relay subscription closed")
			}
			r.handle(msg)
		}
	}
}

func (r *RedisRelay) handle(msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		r.logger.Warn("relay dropped malformed message", zap.String("channel", msg.Channel), zap.Error(err))
		return
	}
	if env.Origin == r.origin {
		return
	}
	if env.Tenant == "" || msg.Channel != r.channel(env.Tenant) {
		r.logger.Warn("relay dropped message with mismatched tenant", zap.String("channel", msg.Channel))
		return
	}
	encoded, err := env.Event.Encode()
	if err != nil {
		return
	}
	r.registry.deliver(env.Tenant, env.Event.Type, encoded)
}

var _ Publisher = (*RedisRelay)(nil)
var _ Publisher = (*Registry)(nil)
