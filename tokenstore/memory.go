package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goFleet/jwt"
	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory. Intended for tests and
// single-process deployments.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Record
	byHash map[string]string
	now    func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Record),
		byHash: make(map[string]string),
		now:    time.Now,
	}
}

func (s *MemoryStore) Persist(_ context.Context, token, userID string, kind jwt.Kind, expiresAt time.Time) (*Record, error) {
	rec := &Record{
		ID:        uuid.NewString(),
		TokenHash: HashToken(token),
		UserID:    userID,
		Kind:      kind,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.byID[rec.ID] = rec
	s.byHash[rec.TokenHash] = rec.ID
	s.mu.Unlock()

	out := *rec
	return &out, nil
}

func (s *MemoryStore) FindActive(_ context.Context, token string, kind jwt.Kind, userID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHash[HashToken(token)]
	if !ok {
		return nil, ErrNotFound
	}
	rec := s.byID[id]
	if rec == nil || rec.Kind != kind || rec.UserID != userID || !rec.Active(s.now()) {
		return nil, ErrNotFound
	}

	out := *rec
	return &out, nil
}

func (s *MemoryStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	if rec, ok := s.byID[id]; ok {
		rec.Revoked = true
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) RevokeIfActive(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok || !rec.Active(s.now()) {
		return false, nil
	}
	rec.Revoked = true
	return true, nil
}

// Len returns the number of records held, revoked ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
