package device

import (
	"context"
	"sort"
	"sync"
	"time"

	goFleet "github.com/MrEthical07/goFleet"
)

// Store persists devices. Every method is scoped to a tenant; a device of
// another tenant is reported as goFleet.ErrNotFound.
type Store interface {
	List(ctx context.Context, tenantID string) ([]Device, error)
	Get(ctx context.Context, tenantID, id string) (Device, error)
	Create(ctx context.Context, d Device) (Device, error)
	Update(ctx context.Context, tenantID, id string, p Patch, now time.Time) (Device, error)
}

// MemoryStore is a Store for tests and single-process runs.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[string]Device
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[string]Device)}
}

func (s *MemoryStore) List(_ context.Context, tenantID string) ([]Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Device, 0)
	for _, d := range s.devices {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, tenantID, id string) (Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok || d.TenantID != tenantID {
		return Device{}, goFleet.ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) Create(_ context.Context, d Device) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[d.ID]; ok {
		return Device{}, goFleet.ErrDuplicateIdentity
	}
	s.devices[d.ID] = d
	return d, nil
}

func (s *MemoryStore) Update(_ context.Context, tenantID, id string, p Patch, now time.Time) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok || d.TenantID != tenantID {
		return Device{}, goFleet.ErrNotFound
	}
	d = p.Apply(d, now)
	s.devices[id] = d
	return d, nil
}
