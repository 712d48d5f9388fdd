// Package streak implements the streak engine: consecutive-day activity with
// grace windows, explicit freeze tokens, optional weekend skip and day-count
// milestones.
//
// Every function is a pure transition over (state, now). Gaps are measured in
// absolute time; calendar-day decisions (same day, weekend) use the state's
// time zone, falling back to the engine default.
package streak

import (
	"fmt"
	"time"

	"github.com/stridefit/stride/internal/domain"
)

const (
	// DefaultFreezeCap is the maximum number of freeze tokens a user can hold.
	DefaultFreezeCap = 3

	graceOpensAfter = 24 * time.Hour
	graceClosesAt   = 48 * time.Hour
	day             = 24 * time.Hour

	// Beyond this many calendar days between two activities no weekend
	// discount can bring the gap back under the grace allowance.
	maxBridgeDays = 7
)

// Engine evaluates streak transitions.
type Engine struct {
	loc        *time.Location
	freezeCap  int
	milestones []domain.StreakMilestone
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the zone used when a state carries no time zone.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithFreezeCap overrides the freeze token cap.
func WithFreezeCap(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.freezeCap = n
		}
	}
}

// New creates an engine with the fixed milestone catalog.
func New(opts ...Option) *Engine {
	e := &Engine{
		loc:        time.UTC,
		freezeCap:  DefaultFreezeCap,
		milestones: Milestones(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FreezeCap returns the configured token cap.
func (e *Engine) FreezeCap() int { return e.freezeCap }

// Location resolves the calendar zone for s.
func (e *Engine) Location(s domain.StreakState) *time.Location {
	if s.TimeZone != "" {
		if loc, err := time.LoadLocation(s.TimeZone); err == nil {
			return loc
		}
	}
	return e.loc
}

// ─── Transitions ────────────────────────────────────────────────────────────

// RecordActivity counts now as a qualifying day.
// Same calendar day as the last qualifying moment: no-op.
// Effective gap ≤ 24h: extend. Inside an open grace window: extend, no token spent.
// Otherwise the streak breaks and restarts at 1; Result.Broken signals it.
func (e *Engine) RecordActivity(s domain.StreakState, now time.Time) (domain.StreakState, domain.StreakResult) {
	loc := e.Location(s)

	if s.IsNew() {
		out := s.Clone()
		out.CurrentStreak = 1
		res := domain.StreakResult{Outcome: domain.OutcomeStarted}
		e.count(&out, &res, now, loc, domain.DayLogged)
		return out, res
	}

	switch cmp := compareDays(s.LastQualifyingAt, now, loc); {
	case cmp == 0:
		return s, domain.StreakResult{Outcome: domain.OutcomeAlreadyCounted}
	case cmp < 0:
		return s, domain.StreakResult{Outcome: domain.OutcomeStale}
	}

	out := e.EvaluateGraceWindow(s, now).Clone()
	gap := e.gap(out, now, loc)

	var res domain.StreakResult
	switch {
	case gap.effective <= graceOpensAfter:
		res.Outcome = domain.OutcomeExtended
		out.CurrentStreak++
		markBridge(&out, gap)
	case out.GraceWindow != nil && !now.After(out.GraceWindow.EndsAt):
		res.Outcome = domain.OutcomeGraced
		out.CurrentStreak++
		markBridge(&out, gap)
	default:
		res.Outcome = domain.OutcomeBroken
		res.Broken = true
		res.PreviousStreak = out.CurrentStreak
		out.CurrentStreak = 1
	}
	out.GraceWindow = nil

	e.count(&out, &res, now, loc, domain.DayLogged)
	return out, res
}

// UseFreezeToken spends one token to mark today as frozen. Frozen days keep
// the streak going and count as qualifying days. Freeze is always explicit.
func (e *Engine) UseFreezeToken(s domain.StreakState, now time.Time) (domain.StreakState, domain.StreakResult, error) {
	if s.FreezeTokensAvailable <= 0 {
		return s, domain.StreakResult{}, domain.ErrInsufficientTokens
	}
	if s.IsNew() || s.CurrentStreak == 0 {
		return s, domain.StreakResult{}, fmt.Errorf("%w: no active streak", domain.ErrStreakBroken)
	}

	loc := e.Location(s)
	if compareDays(s.LastQualifyingAt, now, loc) <= 0 {
		return s, domain.StreakResult{}, domain.ErrDayAlreadyCounted
	}
	if st, ok := s.Days[dayKey(now, loc)]; ok && st.Qualifies() {
		return s, domain.StreakResult{}, domain.ErrDayAlreadyCounted
	}

	out := e.EvaluateGraceWindow(s, now).Clone()
	gap := e.gap(out, now, loc)
	inGrace := out.GraceWindow != nil && !now.After(out.GraceWindow.EndsAt)
	if gap.effective > graceOpensAfter && !inGrace {
		return s, domain.StreakResult{}, domain.ErrStreakBroken
	}

	out.FreezeTokensAvailable--
	out.CurrentStreak++
	out.GraceWindow = nil
	markBridge(&out, gap)

	res := domain.StreakResult{Outcome: domain.OutcomeFrozen}
	e.count(&out, &res, now, loc, domain.DayFrozen)
	return out, res, nil
}

// EvaluateGraceWindow derives the time-dependent grace window. Call before
// presenting state: opens a window when the effective gap is in (24h, 48h]
// and clears one that has expired. Idempotent for the same now.
func (e *Engine) EvaluateGraceWindow(s domain.StreakState, now time.Time) domain.StreakState {
	if s.IsNew() {
		return s
	}
	loc := e.Location(s)

	if s.GraceWindow != nil {
		if now.After(s.GraceWindow.EndsAt) {
			out := s.Clone()
			out.GraceWindow = nil
			return out
		}
		return s
	}

	if compareDays(s.LastQualifyingAt, now, loc) <= 0 {
		return s
	}
	g := e.gap(s, now, loc)
	if g.effective > graceOpensAfter && g.effective <= graceClosesAt {
		out := s.Clone()
		out.GraceWindow = &domain.GraceWindow{EndsAt: e.graceDeadline(s, loc)}
		return out
	}
	return s
}

// ToggleWeekendSkip flips the weekend flag. Recorded days are not touched;
// the derived grace window is dropped so it is re-evaluated under the new rule.
func (e *Engine) ToggleWeekendSkip(s domain.StreakState) domain.StreakState {
	out := s.Clone()
	out.WeekendSkipEnabled = !s.WeekendSkipEnabled
	out.GraceWindow = nil
	return out
}

// SetTimeZone sets the IANA zone used for calendar-day decisions.
func (e *Engine) SetTimeZone(s domain.StreakState, name string) (domain.StreakState, error) {
	if name == "" {
		return s, fmt.Errorf("%w: empty name", domain.ErrInvalidTimeZone)
	}
	if _, err := time.LoadLocation(name); err != nil {
		return s, fmt.Errorf("%w: %q", domain.ErrInvalidTimeZone, name)
	}
	out := s.Clone()
	out.TimeZone = name
	out.GraceWindow = nil
	return out, nil
}

// GrantFreezeTokens adds n tokens, capped at the engine cap. Returns the
// number actually granted.
func (e *Engine) GrantFreezeTokens(s domain.StreakState, n int) (domain.StreakState, int, error) {
	if n <= 0 {
		return s, 0, domain.ErrInvalidTokenCount
	}
	out := s.Clone()
	granted := e.addTokens(&out, n)
	return out, granted, nil
}

// ─── Read Side ──────────────────────────────────────────────────────────────

// Status evaluates s at now for presentation.
func (e *Engine) Status(s domain.StreakState, now time.Time) domain.StreakStatus {
	evaluated := e.EvaluateGraceWindow(s, now)
	st := domain.StreakStatus{State: evaluated}
	if evaluated.IsNew() {
		st.NextMilestone, st.DaysToMilestone = e.nextMilestone(0)
		return st
	}

	loc := e.Location(evaluated)
	st.LoggedToday = compareDays(evaluated.LastQualifyingAt, now, loc) == 0
	st.AtRisk = evaluated.GraceWindow != nil
	if !st.LoggedToday {
		g := e.gap(evaluated, now, loc)
		st.Expired = g.effective > graceClosesAt && !st.AtRisk
	}
	if !st.Expired {
		deadline := e.graceDeadline(evaluated, loc)
		st.BreaksAt = &deadline
	}
	st.NextMilestone, st.DaysToMilestone = e.nextMilestone(evaluated.CurrentStreak)
	return st
}

// ─── Internals ──────────────────────────────────────────────────────────────

// count applies the bookkeeping every qualifying transition shares.
func (e *Engine) count(s *domain.StreakState, res *domain.StreakResult, now time.Time, loc *time.Location, status domain.DayStatus) {
	s.TotalQualifyingDays++
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastQualifyingAt = now
	s.UpdatedAt = now
	setDay(s, dayKey(now, loc), status)

	for _, m := range e.milestones {
		if s.CurrentStreak < m.Days || s.HasMilestone(m.ID) {
			continue
		}
		s.MilestonesReached = append(s.MilestonesReached, domain.MilestoneHit{ID: m.ID, ReachedAt: now})
		res.Milestones = append(res.Milestones, m)
		if m.FreezeTokens > 0 {
			res.TokensGranted += e.addTokens(s, m.FreezeTokens)
		}
	}
}

func (e *Engine) addTokens(s *domain.StreakState, n int) int {
	room := e.freezeCap - s.FreezeTokensAvailable
	if room <= 0 {
		return 0
	}
	if n > room {
		n = room
	}
	s.FreezeTokensAvailable += n
	return n
}

func (e *Engine) nextMilestone(current int) (*domain.StreakMilestone, int) {
	for _, m := range e.milestones {
		if m.Days > current {
			next := m
			return &next, m.Days - current
		}
	}
	return nil, 0
}

// gapInfo is the time since the last qualifying moment with skipped weekend
// days discounted, plus the calendar days it bridges.
type gapInfo struct {
	effective time.Duration
	skipped   []string
	bridged   []string
}

func (e *Engine) gap(s domain.StreakState, now time.Time, loc *time.Location) gapInfo {
	g := gapInfo{effective: now.Sub(s.LastQualifyingAt)}

	between := daysBetween(s.LastQualifyingAt, now, loc)
	if between <= 0 || between > maxBridgeDays {
		return g
	}
	d := startOfDay(s.LastQualifyingAt, loc)
	for i := 0; i < between; i++ {
		d = d.AddDate(0, 0, 1)
		key := d.Format(domain.DateLayout)
		if s.WeekendSkipEnabled && isWeekend(d) {
			g.skipped = append(g.skipped, key)
			g.effective -= day
			continue
		}
		g.bridged = append(g.bridged, key)
	}
	return g
}

// graceDeadline is last + 48h, pushed out by one day per skipped weekend day
// lying strictly between the last qualifying day and the deadline's day.
func (e *Engine) graceDeadline(s domain.StreakState, loc *time.Location) time.Time {
	deadline := s.LastQualifyingAt.Add(graceClosesAt)
	if !s.WeekendSkipEnabled {
		return deadline
	}
	for i := 0; i < 4; i++ {
		skipped := 0
		d := startOfDay(s.LastQualifyingAt, loc)
		for n := daysBetween(s.LastQualifyingAt, deadline, loc); n > 0; n-- {
			d = d.AddDate(0, 0, 1)
			if isWeekend(d) {
				skipped++
			}
		}
		next := s.LastQualifyingAt.Add(graceClosesAt + time.Duration(skipped)*day)
		if next.Equal(deadline) {
			break
		}
		deadline = next
	}
	return deadline
}

// markBridge records skipped weekend days and grace-bridged weekdays.
func markBridge(s *domain.StreakState, g gapInfo) {
	for _, k := range g.skipped {
		setDay(s, k, domain.DaySkipped)
	}
	for _, k := range g.bridged {
		setDay(s, k, domain.DayGraced)
	}
}

func setDay(s *domain.StreakState, key string, status domain.DayStatus) {
	if s.Days == nil {
		s.Days = make(map[string]domain.DayStatus)
	}
	if cur, ok := s.Days[key]; ok && cur.Rank() >= status.Rank() {
		return
	}
	s.Days[key] = status
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(domain.DateLayout)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// dayNumber counts calendar days on a DST-free axis.
func dayNumber(t time.Time, loc *time.Location) int {
	y, m, d := t.In(loc).Date()
	return int(time.Date(y, m, d, 12, 0, 0, 0, time.UTC).Unix() / int64(day/time.Second))
}

// compareDays returns >0 when b's calendar day is after a's, 0 on the same day.
func compareDays(a, b time.Time, loc *time.Location) int {
	return dayNumber(b, loc) - dayNumber(a, loc)
}

// daysBetween counts calendar days strictly between a and b.
func daysBetween(a, b time.Time, loc *time.Location) int {
	return compareDays(a, b, loc) - 1
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
