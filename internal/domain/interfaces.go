package domain

import "context"

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the application layer depends on them.

// StreakStore persists one StreakState per user.
type StreakStore interface {
	// LoadStreakState returns ErrNotFound when the user has no state yet.
	LoadStreakState(ctx context.Context, userID string) (StreakState, error)

	// SaveStreakState writes state if the stored revision still equals
	// state.Revision (0 = insert) and stores it as state.Revision+1.
	// Returns ErrConflict when another writer got there first.
	SaveStreakState(ctx context.Context, userID string, state StreakState) error
}

// ActivationStore persists one ActivationProfile per user or session.
type ActivationStore interface {
	LoadActivationProfile(ctx context.Context, id string) (ActivationProfile, error)
	SaveActivationProfile(ctx context.Context, id string, profile ActivationProfile) error
	DeleteActivationProfile(ctx context.Context, id string) error
}

// Store is implemented by every backend.
type Store interface {
	StreakStore
	ActivationStore
	Ping(ctx context.Context) error
	Close() error
}

// Listener receives domain events after a transition was persisted.
type Listener interface {
	HandleEvent(ctx context.Context, evt Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, evt Event)

// HandleEvent calls f(ctx, evt).
func (f ListenerFunc) HandleEvent(ctx context.Context, evt Event) { f(ctx, evt) }
