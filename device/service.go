package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/broadcast"
	"github.com/MrEthical07/goFleet/respcache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CollectionPath is the list route and the invalidation root for devices.
const CollectionPath = "/api/devices"

// ItemPath returns the route of one device.
func ItemPath(id string) string {
	return CollectionPath + "/" + id
}

// Service runs device reads through the response cache and orders writes as
// store, invalidate, broadcast.
type Service struct {
	store  Store
	cache  *respcache.Cache
	pub    broadcast.Publisher
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a Service. A nil cache disables caching; a nil publisher
// disables broadcasting.
func NewService(store Store, cache *respcache.Cache, pub broadcast.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		cache:  cache,
		pub:    pub,
		logger: logger.With(zap.String("component", "device")),
		now:    time.Now,
	}
}

// List returns the tenant's devices as a JSON array, from cache when present.
func (s *Service) List(ctx context.Context, tenantID string) (respcache.Result, error) {
	compute := func(ctx context.Context) ([]byte, error) {
		devices, err := s.store.List(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("list devices: %w", err)
		}
		return Encode(devices)
	}
	if s.cache == nil {
		v, err := compute(ctx)
		return respcache.Result{Value: v}, err
	}
	return s.cache.ReadThrough(ctx, tenantID, CollectionPath, compute)
}

// Get returns one device of the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id string) (Device, error) {
	return s.store.Get(ctx, tenantID, strings.TrimSpace(id))
}

// Create stores a new device and announces it with DEVICE_CREATE.
func (s *Service) Create(ctx context.Context, tenantID string, nd NewDevice) (Device, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Device{}, fmt.Errorf("%w: tenant is required", goFleet.ErrValidationFailed)
	}
	now := s.now().UTC()
	d, err := s.store.Create(ctx, Device{
		ID:        uuid.NewString(),
		Name:      nd.Name,
		Status:    nd.Status,
		TenantID:  tenantID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Device{}, err
	}
	s.afterWrite(ctx, tenantID, broadcast.TypeDeviceCreate, d)
	return d, nil
}

// Update applies p to the tenant's device and announces it with
// DEVICE_UPDATE. A device of another tenant is goFleet.ErrNotFound.
func (s *Service) Update(ctx context.Context, tenantID, id string, p Patch) (Device, error) {
	d, err := s.store.Update(ctx, tenantID, strings.TrimSpace(id), p, s.now().UTC())
	if err != nil {
		return Device{}, err
	}
	s.afterWrite(ctx, tenantID, broadcast.TypeDeviceUpdate, d)
	return d, nil
}

// afterWrite clears cached reads before broadcasting. A failed invalidation is
// logged and does not undo the committed write; stale entries then expire
// with the cache TTL.
func (s *Service) afterWrite(ctx context.Context, tenantID, eventType string, d Device) {
	// The store write is committed; a client that disconnects now must not
	// leave the old list cached or the event undelivered.
	ctx = context.WithoutCancel(ctx)
	if s.cache != nil {
		if _, err := s.cache.Invalidate(ctx, tenantID, CollectionPath); err != nil {
			s.logger.Error("device cache invalidation failed",
				zap.String("tenant_id", tenantID),
				zap.String("device_id", d.ID),
				zap.Error(err),
			)
		}
	}
	if s.pub == nil {
		return
	}
	ev, err := broadcast.NewEvent(eventType, d)
	if err != nil {
		s.logger.Warn("device event encode failed", zap.Error(err))
		return
	}
	n := s.pub.Publish(ctx, tenantID, ev)
	s.logger.Debug("device event published",
		zap.String("type", eventType),
		zap.String("tenant_id", tenantID),
		zap.Int("delivered", n),
	)
}
