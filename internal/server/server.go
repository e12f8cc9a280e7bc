// Package server exposes the dashboard session over HTTP. Every mutating
// endpoint maps to one session operation, so the API surface mirrors the
// interactions a map client performs: toggling fields, resizing the
// focus circle, and requesting shelter routes.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urban-climate-lab/resilience-cli/internal/session"
	"github.com/urban-climate-lab/resilience-cli/pkg/geocode"
)

// Geocoder resolves a free-text query to a coordinate. Satisfied by
// *geocode.CascadeClient.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*geocode.Result, error)
}

// Server wires the session and an optional geocoder into a chi router.
type Server struct {
	sess     *session.Session
	geocoder Geocoder
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithGeocoder enables the /api/geocode endpoint and free-text route
// starts.
func WithGeocoder(g Geocoder) Option {
	return func(s *Server) { s.geocoder = g }
}

// New builds the HTTP API over a session.
func New(sess *session.Session, opts ...Option) *Server {
	s := &Server{sess: sess}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/fields", s.handleFields)
		r.Post("/fields/{name}/toggle", s.handleToggleField)
		r.Get("/scores", s.handleScores)
		r.Get("/ranking", s.handleRanking)
		r.Get("/focus", s.handleGetFocus)
		r.Put("/focus-radius", s.handleSetFocusRadius)
		r.Get("/shelters", s.handleShelters)
		r.Get("/route", s.handleGetRoute)
		r.Post("/route", s.handleCreateRoute)
		r.Delete("/route", s.handleDeleteRoute)
		r.Get("/geocode", s.handleGeocode)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("server: listening", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
