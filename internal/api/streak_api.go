package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stridefit/stride/internal/domain"
)

// ─── Streak API (/api/streak/{userID}) ──────────────────────────────────────

type activityRequest struct {
	At *time.Time `json:"at,omitempty"`
}

type grantRequest struct {
	Count int `json:"count" validate:"required,min=1,max=100"`
}

type timeZoneRequest struct {
	TimeZone string `json:"time_zone" validate:"required"`
}

type streakMutationResponse struct {
	State  domain.StreakState   `json:"state"`
	Result *domain.StreakResult `json:"result,omitempty"`
}

func (s *Server) handleStreakStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.streaks.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStreakActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	userID := chi.URLParam(r, "userID")

	var (
		st  domain.StreakState
		res domain.StreakResult
		err error
	)
	if req.At != nil {
		st, res, err = s.streaks.RecordAt(r.Context(), userID, *req.At)
	} else {
		st, res, err = s.streaks.Record(r.Context(), userID)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streakMutationResponse{State: st, Result: &res})
}

func (s *Server) handleStreakFreeze(w http.ResponseWriter, r *http.Request) {
	st, res, err := s.streaks.Freeze(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streakMutationResponse{State: st, Result: &res})
}

func (s *Server) handleStreakGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	st, granted, err := s.streaks.GrantTokens(r.Context(), chi.URLParam(r, "userID"), req.Count)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   st,
		"granted": granted,
	})
}

func (s *Server) handleStreakWeekendSkip(w http.ResponseWriter, r *http.Request) {
	st, err := s.streaks.ToggleWeekendSkip(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streakMutationResponse{State: st})
}

func (s *Server) handleStreakTimeZone(w http.ResponseWriter, r *http.Request) {
	var req timeZoneRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.streaks.SetTimeZone(r.Context(), chi.URLParam(r, "userID"), req.TimeZone)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streakMutationResponse{State: st})
}

// handleStreakCalendar serves ?from=YYYY-MM-DD&to=YYYY-MM-DD, defaulting to
// the last 30 days. Dates are taken at noon UTC so they land on the same
// calendar day in any user zone.
func (s *Server) handleStreakCalendar(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -29)
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = parseDate(v); err != nil {
			s.fail(w, r, fmt.Errorf("%w: from: %v", errValidation, err))
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = parseDate(v); err != nil {
			s.fail(w, r, fmt.Errorf("%w: to: %v", errValidation, err))
			return
		}
	}

	days, err := s.streaks.Calendar(r.Context(), chi.URLParam(r, "userID"), from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if days == nil {
		days = []domain.CalendarDay{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

func parseDate(v string) (time.Time, error) {
	d, err := time.Parse(domain.DateLayout, v)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(12 * time.Hour), nil
}
