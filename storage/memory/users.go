// Package memory holds in-process implementations of the goFleet store
// contracts for tests, the load generator and single-node runs.
package memory

import (
	"context"
	"sync"

	goFleet "github.com/MrEthical07/goFleet"
)

// UserStore implements goFleet.UserStore over two maps. Handles are matched
// exactly; the engine normalizes them before calling in.
type UserStore struct {
	mu       sync.RWMutex
	byID     map[string]goFleet.UserRecord
	byHandle map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:     make(map[string]goFleet.UserRecord),
		byHandle: make(map[string]string),
	}
}

func (s *UserStore) CreateUser(_ context.Context, u goFleet.UserRecord) (goFleet.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byHandle[u.Handle]; taken {
		return goFleet.UserRecord{}, goFleet.ErrDuplicateIdentity
	}
	if _, taken := s.byID[u.ID]; taken {
		return goFleet.UserRecord{}, goFleet.ErrDuplicateIdentity
	}
	s.byID[u.ID] = u
	s.byHandle[u.Handle] = u.ID
	return u, nil
}

func (s *UserStore) GetUserByHandle(_ context.Context, handle string) (goFleet.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHandle[handle]
	if !ok {
		return goFleet.UserRecord{}, goFleet.ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *UserStore) GetUserByID(_ context.Context, id string) (goFleet.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return goFleet.UserRecord{}, goFleet.ErrUserNotFound
	}
	return u, nil
}

func (s *UserStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return goFleet.ErrUserNotFound
	}
	u.PasswordHash = hash
	s.byID[id] = u
	return nil
}

// Delete removes a user. Outstanding access tokens stop authenticating.
func (s *UserStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.byID[id]; ok {
		delete(s.byHandle, u.Handle)
		delete(s.byID, id)
	}
}

var _ goFleet.UserStore = (*UserStore)(nil)
