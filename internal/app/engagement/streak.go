package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stridefit/stride/internal/app/streak"
	"github.com/stridefit/stride/internal/domain"
)

// StreakService records daily activity against persisted streak state.
// A user without stored state starts fresh; NotFound is never surfaced.
type StreakService struct {
	store  domain.StreakStore
	engine *streak.Engine
	opts   options
}

// NewStreakService creates a streak service.
func NewStreakService(store domain.StreakStore, engine *streak.Engine, opts ...Option) *StreakService {
	if engine == nil {
		engine = streak.New()
	}
	o := newOptions(opts)
	o.log = o.log.Named("streak")
	return &StreakService{store: store, engine: engine, opts: o}
}

// Engine exposes the underlying engine (milestone catalog, cap).
func (s *StreakService) Engine() *streak.Engine { return s.engine }

// streakTransition is a pure engine step evaluated at now.
type streakTransition func(st domain.StreakState, now time.Time) (domain.StreakState, domain.StreakResult, error)

// ─── Mutations ──────────────────────────────────────────────────────────────

// Record counts today as an activity day.
func (s *StreakService) Record(ctx context.Context, userID string) (domain.StreakState, domain.StreakResult, error) {
	return s.RecordAt(ctx, userID, s.opts.now())
}

// RecordAt counts the activity at a caller-supplied instant (imports, backfills
// from devices that were offline).
func (s *StreakService) RecordAt(ctx context.Context, userID string, at time.Time) (domain.StreakState, domain.StreakResult, error) {
	return s.mutate(ctx, userID, at, func(st domain.StreakState, now time.Time) (domain.StreakState, domain.StreakResult, error) {
		next, res := s.engine.RecordActivity(st, now)
		return next, res, nil
	})
}

// Freeze spends a freeze token on today.
func (s *StreakService) Freeze(ctx context.Context, userID string) (domain.StreakState, domain.StreakResult, error) {
	return s.mutate(ctx, userID, s.opts.now(), s.engine.UseFreezeToken)
}

// GrantTokens adds freeze tokens (purchases, support credits). Returns the
// number actually granted after the cap.
func (s *StreakService) GrantTokens(ctx context.Context, userID string, n int) (domain.StreakState, int, error) {
	if n <= 0 {
		return domain.StreakState{}, 0, domain.ErrInvalidTokenCount
	}
	granted := 0
	st, _, err := s.mutate(ctx, userID, s.opts.now(), func(st domain.StreakState, now time.Time) (domain.StreakState, domain.StreakResult, error) {
		next, g, err := s.engine.GrantFreezeTokens(st, n)
		next.UpdatedAt = now
		granted = g
		return next, domain.StreakResult{}, err
	})
	return st, granted, err
}

// ToggleWeekendSkip flips the weekend-skip setting.
func (s *StreakService) ToggleWeekendSkip(ctx context.Context, userID string) (domain.StreakState, error) {
	st, _, err := s.mutate(ctx, userID, s.opts.now(), func(st domain.StreakState, now time.Time) (domain.StreakState, domain.StreakResult, error) {
		next := s.engine.ToggleWeekendSkip(st)
		next.UpdatedAt = now
		return next, domain.StreakResult{}, nil
	})
	return st, err
}

// SetTimeZone sets the IANA zone used for the user's calendar days.
func (s *StreakService) SetTimeZone(ctx context.Context, userID, name string) (domain.StreakState, error) {
	st, _, err := s.mutate(ctx, userID, s.opts.now(), func(st domain.StreakState, now time.Time) (domain.StreakState, domain.StreakResult, error) {
		next, err := s.engine.SetTimeZone(st, name)
		next.UpdatedAt = now
		return next, domain.StreakResult{}, err
	})
	return st, err
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Get returns the state evaluated at the current time.
func (s *StreakService) Get(ctx context.Context, userID string) (domain.StreakStatus, error) {
	st, err := s.load(ctx, userID)
	if err != nil {
		return domain.StreakStatus{}, err
	}
	return s.engine.Status(st, s.opts.now()), nil
}

// Calendar returns per-day statuses for [from, to].
func (s *StreakService) Calendar(ctx context.Context, userID string, from, to time.Time) ([]domain.CalendarDay, error) {
	st, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.engine.Calendar(st, from, to, s.opts.now()), nil
}

// ─── Internals ──────────────────────────────────────────────────────────────

func (s *StreakService) load(ctx context.Context, userID string) (domain.StreakState, error) {
	if userID == "" {
		return domain.StreakState{}, domain.ErrInvalidID
	}
	var st domain.StreakState
	err := withRetry(ctx, s.opts.retry, s.opts.log, "load streak", func() error {
		var err error
		st, err = s.store.LoadStreakState(ctx, userID)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.StreakState{}, nil
	}
	if err != nil {
		return domain.StreakState{}, fmt.Errorf("load streak %s: %w", userID, err)
	}
	return st, nil
}

// mutate runs fn against the stored state and saves the result. On a
// revision conflict fn is re-applied to the freshly loaded state, which
// already holds the other writer's progress.
func (s *StreakService) mutate(ctx context.Context, userID string, now time.Time, fn streakTransition) (domain.StreakState, domain.StreakResult, error) {
	cur, err := s.load(ctx, userID)
	if err != nil {
		return domain.StreakState{}, domain.StreakResult{}, err
	}
	next, res, err := fn(cur, now)
	if err != nil || !res.Changed() {
		return next, res, err
	}

	for round := 0; ; round++ {
		err = withRetry(ctx, s.opts.retry, s.opts.log, "save streak", func() error {
			return s.store.SaveStreakState(ctx, userID, next)
		})
		if err == nil {
			next.Revision++
			break
		}
		if !errors.Is(err, domain.ErrConflict) || round >= s.opts.maxMerges {
			return cur, res, fmt.Errorf("save streak %s: %w", userID, err)
		}

		s.opts.log.Debug("streak save conflict, merging",
			zap.String("user", userID), zap.Int("round", round+1))
		fresh, lerr := s.load(ctx, userID)
		if lerr != nil {
			return cur, res, lerr
		}
		recomputed, rres, terr := fn(fresh, now)
		if terr != nil {
			// The transition is no longer valid against what the other writer
			// stored (for example its freeze spent the last token).
			return fresh, rres, terr
		}
		if !rres.Changed() {
			// The other writer already covered this transition.
			return recomputed, rres, nil
		}
		// recomputed already carries the other writer's changes. Merging it
		// with the stale result would take the stale token count.
		recomputed.Revision = fresh.Revision
		cur, next, res = fresh, recomputed, rres
	}

	s.publish(ctx, userID, now, next, res)
	return next, res, nil
}

func (s *StreakService) publish(ctx context.Context, userID string, now time.Time, st domain.StreakState, res domain.StreakResult) {
	payload := func(milestone string) domain.StreakPayloadV1 {
		return domain.StreakPayloadV1{
			CurrentStreak:  st.CurrentStreak,
			LongestStreak:  st.LongestStreak,
			PreviousStreak: res.PreviousStreak,
			MilestoneID:    milestone,
			TokensLeft:     st.FreezeTokensAvailable,
		}
	}

	var events []domain.Event
	switch res.Outcome {
	case domain.OutcomeStarted, domain.OutcomeExtended, domain.OutcomeGraced:
		events = append(events, domain.NewEvent(domain.EventStreakExtended, userID, now, payload("")))
	case domain.OutcomeBroken:
		events = append(events, domain.NewEvent(domain.EventStreakBroken, userID, now, payload("")))
	case domain.OutcomeFrozen:
		events = append(events, domain.NewEvent(domain.EventStreakFreezeUsed, userID, now, payload("")))
	}
	for _, m := range res.Milestones {
		events = append(events, domain.NewEvent(domain.EventStreakMilestone, userID, now, payload(m.ID)))
	}
	s.opts.notifier.Publish(ctx, events...)
}
