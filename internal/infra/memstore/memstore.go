// Package memstore is an in-process domain.Store. It backs the "memory"
// storage driver (ephemeral dev servers) and the service and API tests.
// Revision checks behave exactly like the SQL backends.
package memstore

import (
	"context"
	"sync"

	"github.com/stridefit/stride/internal/domain"
)

// Store keeps states in maps guarded by a mutex.
type Store struct {
	mu       sync.Mutex
	streaks  map[string]domain.StreakState
	profiles map[string]domain.ActivationProfile
	closed   bool
}

var _ domain.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		streaks:  make(map[string]domain.StreakState),
		profiles: make(map[string]domain.ActivationProfile),
	}
}

func (s *Store) LoadStreakState(_ context.Context, userID string) (domain.StreakState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.StreakState{}, errClosed("load streak")
	}
	st, ok := s.streaks[userID]
	if !ok {
		return domain.StreakState{}, domain.ErrNotFound
	}
	return st.Clone(), nil
}

func (s *Store) SaveStreakState(_ context.Context, userID string, st domain.StreakState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed("save streak")
	}
	cur, ok := s.streaks[userID]
	if (!ok && st.Revision != 0) || (ok && cur.Revision != st.Revision) {
		return domain.ErrConflict
	}
	next := st.Clone()
	next.Revision = st.Revision + 1
	s.streaks[userID] = next
	return nil
}

func (s *Store) LoadActivationProfile(_ context.Context, id string) (domain.ActivationProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ActivationProfile{}, errClosed("load profile")
	}
	p, ok := s.profiles[id]
	if !ok {
		return domain.ActivationProfile{}, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) SaveActivationProfile(_ context.Context, id string, p domain.ActivationProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed("save profile")
	}
	cur, ok := s.profiles[id]
	if (!ok && p.Revision != 0) || (ok && cur.Revision != p.Revision) {
		return domain.ErrConflict
	}
	next := p.Clone()
	next.Revision = p.Revision + 1
	s.profiles[id] = next
	return nil
}

func (s *Store) DeleteActivationProfile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed("delete profile")
	}
	if _, ok := s.profiles[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.profiles, id)
	return nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed("ping")
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type closedError struct{}

func (closedError) Error() string { return "store closed" }

func errClosed(op string) error {
	return domain.NewStorageError(op, closedError{})
}
