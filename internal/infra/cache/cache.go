// Package cache provides a read-through LRU decorator for any domain.Store.
// A successful save caches the state it wrote; a failed save or a delete
// drops the entry, so the reload that follows a conflict reaches the
// backend. A read that raced a write is not cached.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/stridefit/stride/internal/domain"
)

// SchemaVersion is bumped when cached shapes change so old entries are ignored.
const SchemaVersion = "1.0"

type entry[T any] struct {
	version  string
	revision int64
	value    T
}

// Store caches reads in front of a backend store.
type Store struct {
	next     domain.Store
	streaks  *expirable.LRU[string, entry[domain.StreakState]]
	profiles *expirable.LRU[string, entry[domain.ActivationProfile]]

	mu sync.Mutex
	// gen counts writes; a load only fills the cache if none happened
	// while it was reading the backend.
	gen uint64
}

var _ domain.Store = (*Store)(nil)

// New wraps next with LRUs holding up to size entries each for ttl.
func New(next domain.Store, size int, ttl time.Duration) *Store {
	return &Store{
		next:     next,
		streaks:  expirable.NewLRU[string, entry[domain.StreakState]](size, nil, ttl),
		profiles: expirable.NewLRU[string, entry[domain.ActivationProfile]](size, nil, ttl),
	}
}

func (s *Store) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// fill caches a loaded value unless a write happened since gen was read.
func fill[T any](s *Store, lru *expirable.LRU[string, entry[T]], key string, gen uint64, rev int64, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	lru.Add(key, entry[T]{version: SchemaVersion, revision: rev, value: v})
}

// written records the outcome of a save: the stored value on success, no
// entry on failure. An entry for a later revision is never replaced.
func written[T any](s *Store, lru *expirable.LRU[string, entry[T]], key string, err error, rev int64, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if err != nil {
		lru.Remove(key)
		return
	}
	if cur, ok := lru.Peek(key); ok && cur.version == SchemaVersion && cur.revision >= rev {
		return
	}
	lru.Add(key, entry[T]{version: SchemaVersion, revision: rev, value: v})
}

// ─── Streaks ────────────────────────────────────────────────────────────────

// LoadStreakState serves from cache when possible.
func (s *Store) LoadStreakState(ctx context.Context, userID string) (domain.StreakState, error) {
	if e, ok := s.streaks.Get(userID); ok && e.version == SchemaVersion {
		return e.value.Clone(), nil
	}
	gen := s.generation()
	st, err := s.next.LoadStreakState(ctx, userID)
	if err != nil {
		return st, err
	}
	fill(s, s.streaks, userID, gen, st.Revision, st.Clone())
	return st, nil
}

// SaveStreakState writes through and caches what was stored.
func (s *Store) SaveStreakState(ctx context.Context, userID string, st domain.StreakState) error {
	err := s.next.SaveStreakState(ctx, userID, st)
	stored := st.Clone()
	stored.Revision = st.Revision + 1
	written(s, s.streaks, userID, err, stored.Revision, stored)
	return err
}

// ─── Activation Profiles ────────────────────────────────────────────────────

// LoadActivationProfile serves from cache when possible.
func (s *Store) LoadActivationProfile(ctx context.Context, id string) (domain.ActivationProfile, error) {
	if e, ok := s.profiles.Get(id); ok && e.version == SchemaVersion {
		return e.value.Clone(), nil
	}
	gen := s.generation()
	p, err := s.next.LoadActivationProfile(ctx, id)
	if err != nil {
		return p, err
	}
	fill(s, s.profiles, id, gen, p.Revision, p.Clone())
	return p, nil
}

// SaveActivationProfile writes through and caches what was stored.
func (s *Store) SaveActivationProfile(ctx context.Context, id string, p domain.ActivationProfile) error {
	err := s.next.SaveActivationProfile(ctx, id, p)
	stored := p.Clone()
	stored.Revision = p.Revision + 1
	written(s, s.profiles, id, err, stored.Revision, stored)
	return err
}

// DeleteActivationProfile deletes through and invalidates.
func (s *Store) DeleteActivationProfile(ctx context.Context, id string) error {
	err := s.next.DeleteActivationProfile(ctx, id)
	s.mu.Lock()
	s.gen++
	s.profiles.Remove(id)
	s.mu.Unlock()
	return err
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

// Close purges the cache and closes the backend.
func (s *Store) Close() error {
	s.streaks.Purge()
	s.profiles.Purge()
	return s.next.Close()
}

// Len reports cached entries (streaks, profiles).
func (s *Store) Len() (int, int) {
	return s.streaks.Len(), s.profiles.Len()
}
