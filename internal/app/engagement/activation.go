package engagement

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stridefit/stride/internal/app/activation"
	"github.com/stridefit/stride/internal/domain"
)

// ActivationService tracks activation events against persisted profiles.
type ActivationService struct {
	store  domain.ActivationStore
	engine *activation.Engine
	opts   options
}

// NewActivationService creates an activation service.
func NewActivationService(store domain.ActivationStore, engine *activation.Engine, opts ...Option) *ActivationService {
	if engine == nil {
		engine = activation.New()
	}
	o := newOptions(opts)
	o.log = o.log.Named("activation")
	return &ActivationService{store: store, engine: engine, opts: o}
}

// Registry returns the fixed event table.
func (a *ActivationService) Registry() []domain.EventDef {
	return activation.Registry()
}

// Milestones returns the activation milestone table.
func (a *ActivationService) Milestones() []domain.ActivationMilestone {
	return activation.Milestones()
}

// ─── Mutations ──────────────────────────────────────────────────────────────

// Track records a registry event for id. Unknown names fail before any
// storage access.
func (a *ActivationService) Track(ctx context.Context, id string, in domain.TrackInput) (domain.ActivationProfile, domain.ActivationEvent, domain.TrackResult, error) {
	if _, ok := activation.Lookup(in.Name); !ok {
		return domain.ActivationProfile{}, domain.ActivationEvent{}, domain.TrackResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, in.Name)
	}
	cur, err := a.load(ctx, id, in.Anonymous)
	if err != nil {
		return domain.ActivationProfile{}, domain.ActivationEvent{}, domain.TrackResult{}, err
	}

	now := a.opts.now()
	next, ev, res, err := a.engine.Track(cur, in, now)
	if err != nil {
		return cur, domain.ActivationEvent{}, domain.TrackResult{}, err
	}

	base, saved, err := a.commit(ctx, id, cur, next)
	if err != nil {
		return cur, domain.ActivationEvent{}, domain.TrackResult{}, err
	}
	if base.Revision != cur.Revision {
		res = diffResult(base, saved, res)
	}

	a.publishTrack(ctx, saved, ev, res)
	return saved, ev, res, nil
}

// Identify upgrades an anonymous session to a registered user. The session's
// events are merged into any existing user profile and the session is removed.
func (a *ActivationService) Identify(ctx context.Context, sessionID, userID string) (domain.ActivationProfile, error) {
	if sessionID == "" || userID == "" {
		return domain.ActivationProfile{}, domain.ErrInvalidID
	}
	session, err := a.loadExisting(ctx, sessionID)
	if err != nil {
		return domain.ActivationProfile{}, err
	}
	if sessionID == userID {
		return session, nil
	}

	user, err := a.load(ctx, userID, false)
	if err != nil {
		return domain.ActivationProfile{}, err
	}
	upgraded := a.engine.Identify(session, userID)
	next := upgraded
	if len(user.Events) > 0 || user.Revision > 0 {
		next = a.engine.Merge(user, upgraded)
	}
	next.Revision = user.Revision

	_, saved, err := a.commit(ctx, userID, user, next)
	if err != nil {
		return domain.ActivationProfile{}, err
	}

	err = withRetry(ctx, a.opts.retry, a.opts.log, "delete session", func() error {
		return a.store.DeleteActivationProfile(ctx, sessionID)
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		// The user profile already holds the events; a leftover session is harmless.
		a.opts.log.Warn("delete identified session", zap.String("session", sessionID), zap.Error(err))
	}

	a.opts.notifier.Publish(ctx, domain.NewEvent(domain.EventActivationIdentified, userID, a.opts.now(), domain.ActivationPayloadV1{
		Score:           saved.ActivationScore,
		EngagementLevel: saved.EngagementLevel,
		TimeToActivate:  saved.TimeToActivation,
	}))
	return saved, nil
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Get returns the profile with its engagement level evaluated now.
func (a *ActivationService) Get(ctx context.Context, id string) (domain.ActivationProfile, error) {
	p, err := a.load(ctx, id, false)
	if err != nil {
		return domain.ActivationProfile{}, err
	}
	return a.engine.Refresh(p, a.opts.now()), nil
}

// Recommend returns up to three unperformed events, highest value first.
func (a *ActivationService) Recommend(ctx context.Context, id string) ([]domain.Recommendation, error) {
	p, err := a.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return a.engine.RecommendNextActions(p), nil
}

// Journey returns the read-side history projection.
func (a *ActivationService) Journey(ctx context.Context, id string) (domain.Journey, error) {
	p, err := a.load(ctx, id, false)
	if err != nil {
		return domain.Journey{}, err
	}
	return a.engine.Journey(p), nil
}

// ─── Internals ──────────────────────────────────────────────────────────────

// load returns the stored profile or a fresh one for an unknown id.
func (a *ActivationService) load(ctx context.Context, id string, anonymous bool) (domain.ActivationProfile, error) {
	p, err := a.loadExisting(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewActivationProfile(id, anonymous), nil
	}
	return p, err
}

func (a *ActivationService) loadExisting(ctx context.Context, id string) (domain.ActivationProfile, error) {
	if id == "" {
		return domain.ActivationProfile{}, domain.ErrInvalidID
	}
	var p domain.ActivationProfile
	err := withRetry(ctx, a.opts.retry, a.opts.log, "load profile", func() error {
		var err error
		p, err = a.store.LoadActivationProfile(ctx, id)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ActivationProfile{}, fmt.Errorf("profile %s: %w", id, err)
	}
	if err != nil {
		return domain.ActivationProfile{}, fmt.Errorf("load profile %s: %w", id, err)
	}
	return p, nil
}

// commit saves next (computed from cur). On a revision conflict the stored
// profile is reloaded and merged with next by event union; events are
// immutable and keyed by ID, so nothing is counted twice. Returns the
// profile the final save was based on and the saved profile.
func (a *ActivationService) commit(ctx context.Context, id string, cur, next domain.ActivationProfile) (domain.ActivationProfile, domain.ActivationProfile, error) {
	for round := 0; ; round++ {
		err := withRetry(ctx, a.opts.retry, a.opts.log, "save profile", func() error {
			return a.store.SaveActivationProfile(ctx, id, next)
		})
		if err == nil {
			next.Revision++
			return cur, next, nil
		}
		if !errors.Is(err, domain.ErrConflict) || round >= a.opts.maxMerges {
			return cur, next, fmt.Errorf("save profile %s: %w", id, err)
		}

		a.opts.log.Debug("profile save conflict, merging",
			zap.String("id", id), zap.Int("round", round+1))
		fresh, err := a.loadExisting(ctx, id)
		if err != nil {
			return cur, next, err
		}
		merged := a.engine.Merge(fresh, next)
		merged.Revision = fresh.Revision
		cur, next = fresh, merged
	}
}

// diffResult re-derives what this write changed after a merge folded in
// another writer's events.
func diffResult(base, saved domain.ActivationProfile, local domain.TrackResult) domain.TrackResult {
	out := domain.TrackResult{
		Activated: saved.IsActivated && !base.IsActivated,
		LevelFrom: local.LevelFrom,
		LevelTo:   saved.EngagementLevel,
	}
	for _, m := range activation.Milestones() {
		if saved.HasMilestone(m.ID) && !base.HasMilestone(m.ID) {
			out.Milestones = append(out.Milestones, m)
		}
	}
	return out
}

func (a *ActivationService) publishTrack(ctx context.Context, p domain.ActivationProfile, ev domain.ActivationEvent, res domain.TrackResult) {
	payload := domain.ActivationPayloadV1{
		EventName:       ev.Name,
		Points:          ev.Points,
		Category:        ev.Category,
		Score:           p.ActivationScore,
		EngagementLevel: p.EngagementLevel,
	}
	events := []domain.Event{domain.NewEvent(domain.EventActivationTracked, p.ID, ev.Timestamp, payload)}
	if res.Activated {
		act := payload
		act.TimeToActivate = p.TimeToActivation
		events = append(events, domain.NewEvent(domain.EventActivationActivated, p.ID, ev.Timestamp, act))
	}
	for _, m := range res.Milestones {
		ms := payload
		ms.MilestoneID = m.ID
		events = append(events, domain.NewEvent(domain.EventActivationMilestone, p.ID, ev.Timestamp, ms))
	}
	a.opts.notifier.Publish(ctx, events...)
}
