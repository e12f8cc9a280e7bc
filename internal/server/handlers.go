package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/internal/routing"
	"github.com/urban-climate-lab/resilience-cli/internal/session"
)

type fieldView struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Invert bool   `json:"invert"`
	Active bool   `json:"active"`
}

func (s *Server) handleFields(w http.ResponseWriter, _ *http.Request) {
	active := make(map[string]bool)
	for _, name := range s.sess.ActiveFields() {
		active[name] = true
	}

	views := make([]fieldView, 0, len(s.sess.Fields()))
	for _, f := range s.sess.Fields() {
		views = append(views, fieldView{
			Name:   f.Name,
			Label:  f.Label,
			Invert: f.Invert,
			Active: active[f.Name],
		})
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleToggleField(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	nowActive, err := s.sess.ToggleField(name)
	if err != nil {
		if errors.Is(err, session.ErrUnknownField) {
			respondError(w, http.StatusNotFound, "unknown field: "+name)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"field": name, "active": nowActive})
}

type scoreView struct {
	Name    string  `json:"name"`
	Lng     float64 `json:"lng"`
	Lat     float64 `json:"lat"`
	Score   float64 `json:"score"`
	InFocus bool    `json:"in_focus"`
}

func (s *Server) handleScores(w http.ResponseWriter, _ *http.Request) {
	points := s.sess.Points()
	results := s.sess.Results()

	views := make([]scoreView, len(points))
	for i, p := range points {
		views[i] = scoreView{
			Name:    p.Name,
			Lng:     p.Coord.Lng,
			Lat:     p.Coord.Lat,
			Score:   results[i].Score,
			InFocus: results[i].InFocus,
		}
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleRanking(w http.ResponseWriter, _ *http.Request) {
	top := s.sess.TopRanked()

	views := make([]scoreView, len(top))
	for i, e := range top {
		views[i] = scoreView{
			Name:    e.Point.Name,
			Lng:     e.Point.Coord.Lng,
			Lat:     e.Point.Coord.Lat,
			Score:   e.Score,
			InFocus: true,
		}
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetFocus(w http.ResponseWriter, _ *http.Request) {
	focus := s.sess.Focus()
	respondJSON(w, http.StatusOK, map[string]any{
		"center_lng": focus.Center.Lng,
		"center_lat": focus.Center.Lat,
		"radius_km":  focus.RadiusKm,
	})
}

func (s *Server) handleSetFocusRadius(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RadiusKm float64 `json:"radius_km"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RadiusKm <= 0 {
		respondError(w, http.StatusBadRequest, "radius_km must be > 0")
		return
	}

	s.sess.SetFocusRadius(req.RadiusKm)
	respondJSON(w, http.StatusOK, map[string]any{"radius_km": req.RadiusKm})
}

type shelterView struct {
	Name     string  `json:"name"`
	District string  `json:"district,omitempty"`
	Lng      float64 `json:"lng"`
	Lat      float64 `json:"lat"`
}

func (s *Server) handleShelters(w http.ResponseWriter, _ *http.Request) {
	shelters := s.sess.Shelters()
	views := make([]shelterView, len(shelters))
	for i, sh := range shelters {
		views[i] = shelterView{Name: sh.Name, District: sh.District, Lng: sh.Coord.Lng, Lat: sh.Coord.Lat}
	}
	respondJSON(w, http.StatusOK, views)
}

type routeView struct {
	Shelter shelterView        `json:"shelter"`
	Coords  []model.Coordinate `json:"coords"`
}

func (s *Server) handleGetRoute(w http.ResponseWriter, _ *http.Request) {
	route := s.sess.CurrentRoute()
	if route == nil {
		respondError(w, http.StatusNotFound, "no active route")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"coords": route.Coords})
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lng   *float64 `json:"lng"`
		Lat   *float64 `json:"lat"`
		Query string   `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var start model.Coordinate
	switch {
	case req.Lng != nil && req.Lat != nil:
		start = model.Coordinate{Lng: *req.Lng, Lat: *req.Lat}
	case strings.TrimSpace(req.Query) != "":
		if s.geocoder == nil {
			respondError(w, http.StatusBadRequest, "geocoding not configured")
			return
		}
		res, err := s.geocoder.Geocode(r.Context(), req.Query)
		if err != nil {
			respondError(w, http.StatusBadGateway, "geocode failed")
			return
		}
		if !res.Matched {
			respondError(w, http.StatusNotFound, "no match for query")
			return
		}
		start = model.Coordinate{Lng: res.Longitude, Lat: res.Latitude}
	default:
		respondError(w, http.StatusBadRequest, "lng/lat or query is required")
		return
	}

	route, shelter, err := s.sess.RouteTo(start)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoShelters), errors.Is(err, routing.ErrNoRoadData):
			respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, routing.ErrStartUnreachable), errors.Is(err, routing.ErrRouteTooShort):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			zap.L().Error("server: route synthesis failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "route synthesis failed")
		}
		return
	}

	respondJSON(w, http.StatusCreated, routeView{
		Shelter: shelterView{Name: shelter.Name, District: shelter.District, Lng: shelter.Coord.Lng, Lat: shelter.Coord.Lat},
		Coords:  route.Coords,
	})
}

func (s *Server) handleDeleteRoute(w http.ResponseWriter, _ *http.Request) {
	s.sess.ClearRoute()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		respondError(w, http.StatusNotFound, "geocoding not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "q is required")
		return
	}

	res, err := s.geocoder.Geocode(r.Context(), query)
	if err != nil {
		respondError(w, http.StatusBadGateway, "geocode failed")
		return
	}
	respondJSON(w, http.StatusOK, res)
}
