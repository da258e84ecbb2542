package respcache

import (
	"context"
	"errors"
	"strings"
	"time"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/cache"
	"go.uber.org/zap"
)

// DefaultTTL is the lifetime of a cached response.
const DefaultTTL = 900 * time.Second

// ComputeFunc produces the serialized response for a miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Result is what ReadThrough returns. Hit is false whenever compute ran.
type Result struct {
	Value []byte
	Hit   bool
}

// Config controls key layout and entry lifetime.
type Config struct {
	Prefix string
	TTL    time.Duration
}

// Cache is the read-through / write-invalidate layer. Safe for concurrent use.
type Cache struct {
	store   cache.Store
	prefix  string
	ttl     time.Duration
	logger  *zap.Logger
	metrics *goFleet.Metrics
}

// New wraps store. A nil logger disables logging; nil metrics records nothing.
func New(store cache.Store, cfg Config, logger *zap.Logger, metrics *goFleet.Metrics) *Cache {
	if cfg.Prefix == "" {
		cfg.Prefix = "cache"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:   store,
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
		logger:  logger.With(zap.String("component", "respcache")),
		metrics: metrics,
	}
}

// Key returns the store key for a tenant's resource path.
func (c *Cache) Key(tenantID, path string) string {
	var b strings.Builder
	b.Grow(len(c.prefix) + len(tenantID) + len(path) + 2)
	b.WriteString(c.prefix)
	b.WriteByte(':')
	b.WriteString(tenantID)
	b.WriteByte(':')
	b.WriteString(path)
	return b.String()
}

// Pattern returns the glob matching every key of collection for tenantID.
func (c *Cache) Pattern(tenantID, collection string) string {
	return cache.EscapeGlob(c.prefix) + ":" + cache.EscapeGlob(tenantID) + ":" + cache.EscapeGlob(collection) + "*"
}

// Lookup returns the cached value for path. Backend failures are logged and
// reported as a miss.
func (c *Cache) Lookup(ctx context.Context, tenantID, path string) ([]byte, bool) {
	key := c.Key(tenantID, path)
	v, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		c.metrics.Inc(goFleet.MetricCacheHit)
		return v, true
	case errors.Is(err, cache.ErrMiss):
		c.metrics.Inc(goFleet.MetricCacheMiss)
	default:
		c.metrics.Inc(goFleet.MetricCacheMiss)
		c.metrics.Inc(goFleet.MetricCacheError)
		c.logger.Warn("cache read failed, serving uncached", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

// Put stores value for path with the configured TTL. Failures are logged.
func (c *Cache) Put(ctx context.Context, tenantID, path string, value []byte) {
	key := c.Key(tenantID, path)
	if err := c.store.SetWithTTL(ctx, key, value, c.ttl); err != nil {
		c.metrics.Inc(goFleet.MetricCacheError)
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// ReadThrough returns the cached value for path, or runs compute and stores
// its result before returning. A compute error is returned unchanged and
// nothing is stored.
func (c *Cache) ReadThrough(ctx context.Context, tenantID, path string, compute ComputeFunc) (Result, error) {
	if v, ok := c.Lookup(ctx, tenantID, path); ok {
		return Result{Value: v, Hit: true}, nil
	}

	v, err := compute(ctx)
	if err != nil {
		return Result{}, err
	}
	c.Put(ctx, tenantID, path, v)
	return Result{Value: v}, nil
}

// Invalidate removes every cached response under collection for tenantID and
// reports how many keys were deleted.
func (c *Cache) Invalidate(ctx context.Context, tenantID, collection string) (int, error) {
	pattern := c.Pattern(tenantID, collection)
	n, err := c.store.DeleteMatching(ctx, pattern)
	c.metrics.Inc(goFleet.MetricCacheInvalidation)
	if n > 0 {
		c.metrics.Add(goFleet.MetricCacheKeysInvalidated, uint64(n))
	}
	if err != nil {
		c.metrics.Inc(goFleet.MetricCacheError)
		c.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Int("deleted", n), zap.Error(err))
		return n, err
	}
	c.logger.Debug("cache invalidated", zap.String("pattern", pattern), zap.Int("deleted", n))
	return n, nil
}

// Ping checks the backing store.
func (c *Cache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}
