package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stridefit/stride/internal/domain"
)

// ─── Activation API (/api/activation) ───────────────────────────────────────

type trackRequest struct {
	Event     string          `json:"event" validate:"required,max=64"`
	Data      json.RawMessage `json:"data,omitempty"`
	Source    string          `json:"source,omitempty" validate:"max=32"`
	Anonymous bool            `json:"anonymous,omitempty"`
}

type trackResponse struct {
	Profile domain.ActivationProfile `json:"profile"`
	Event   domain.ActivationEvent   `json:"event"`
	Result  domain.TrackResult       `json:"result"`
}

type identifyRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

func (s *Server) handleActivationRegistry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"events":     s.activation.Registry(),
		"milestones": s.activation.Milestones(),
	})
}

func (s *Server) handleActivationProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.activation.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleActivationTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, ev, res, err := s.activation.Track(r.Context(), chi.URLParam(r, "id"), domain.TrackInput{
		Name:      req.Event,
		Data:      req.Data,
		Source:    req.Source,
		Anonymous: req.Anonymous,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, trackResponse{Profile: p, Event: ev, Result: res})
}

func (s *Server) handleActivationRecommend(w http.ResponseWriter, r *http.Request) {
	recs, err := s.activation.Recommend(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

func (s *Server) handleActivationJourney(w http.ResponseWriter, r *http.Request) {
	j, err := s.activation.Journey(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleActivationIdentify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.activation.Identify(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
