package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store. DeleteMatching runs under the same
// lock as writes, so it is atomic with respect to every other operation.
type MemoryStore struct {
	mu      sync.Mutex
	items   map[string]memoryEntry
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewMemoryStore returns a store that sweeps expired entries every
// sweepInterval. A non-positive interval disables the sweeper; expired
// entries are then only dropped lazily on Get.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		items: make(map[string]memoryEntry),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if sweepInterval > 0 {
		s.wg.Add(1)
		go s.sweep(sweepInterval)
	}
	return s
}

func (s *MemoryStore) sweep(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) removeExpired() {
	now := s.now()
	s.mu.Lock()
	for key, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, key)
		}
	}
	s.mu.Unlock()
}

// Close stops the sweeper. The store stays usable.
func (s *MemoryStore) Close() {
	s.stopped.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return nil, ErrMiss
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.items, key)
		return nil, ErrMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (s *MemoryStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	buf := make([]byte, len(value))
	copy(buf, value)

	s.mu.Lock()
	s.items[key] = memoryEntry{value: buf, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteMatching(_ context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key := range s.items {
		if Match(pattern, key) {
			delete(s.items, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of entries, expired ones not yet swept included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
