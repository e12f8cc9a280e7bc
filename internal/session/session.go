// Package session holds the explicit dashboard state — loaded datasets,
// fitted stats, the active field selection, focus radius, and the
// in-flight route — so the engines stay free of ambient globals and
// unit-testable without a live map.
package session

import (
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urban-climate-lab/resilience-cli/internal/dataset"
	"github.com/urban-climate-lab/resilience-cli/internal/geo"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/internal/ranking"
	"github.com/urban-climate-lab/resilience-cli/internal/routing"
	"github.com/urban-climate-lab/resilience-cli/internal/scorer"
	"github.com/urban-climate-lab/resilience-cli/internal/stats"
)

// ErrNoShelters means the shelter dataset is absent, so there is no
// routing destination to snap to.
var ErrNoShelters = eris.New("session: no shelter dataset loaded")

// ErrUnknownField means a toggle named a field outside the configured
// table.
var ErrUnknownField = eris.New("session: unknown field")

// Options configures a new session.
type Options struct {
	Fields  scorer.FieldTable
	Focus   scorer.Focus
	Ranking RankingOptions
	Routing routing.Params
}

// RankingOptions tunes the top-K selection.
type RankingOptions struct {
	K               int
	MinSeparationKm float64
}

// Session is the single dashboard state object. All operations are
// serialized: each user action runs one synchronous recompute to
// completion before the next is admitted.
type Session struct {
	mu sync.Mutex

	bundle *dataset.Bundle
	fields scorer.FieldTable
	fitted map[string]stats.FieldStats

	active map[string]bool
	focus  scorer.Focus

	rankOpts  RankingOptions
	routeOpts routing.Params

	results []scorer.Result
	top     []ranking.Entry
	route   *model.Route
}

// New builds a session over a loaded bundle: stats are fitted once from
// the full dataset and an initial recompute pass runs immediately.
func New(bundle *dataset.Bundle, opts Options) (*Session, error) {
	if bundle == nil || len(bundle.Points) == 0 {
		return nil, eris.New("session: bundle has no points")
	}
	fields := opts.Fields
	if len(fields) == 0 {
		fields = scorer.DefaultFields()
	}

	s := &Session{
		bundle:    bundle,
		fields:    fields,
		fitted:    stats.Fit(bundle.Points, fields.RawFuncs()),
		active:    make(map[string]bool),
		focus:     opts.Focus,
		rankOpts:  opts.Ranking,
		routeOpts: opts.Routing,
	}
	s.recomputeLocked()
	return s, nil
}

// Fields returns the configured field table.
func (s *Session) Fields() scorer.FieldTable { return s.fields }

// Stats returns the fitted normalization windows.
func (s *Session) Stats() map[string]stats.FieldStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]stats.FieldStats, len(s.fitted))
	for k, v := range s.fitted {
		out[k] = v
	}
	return out
}

// ToggleField flips one indicator on or off and reruns scoring and
// ranking over the whole collection. Returns the field's new state.
func (s *Session) ToggleField(name string) (bool, error) {
	if _, ok := s.fields.Lookup(name); !ok {
		return false, eris.Wrapf(ErrUnknownField, "%q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.active[name] = !s.active[name]
	nowActive := s.active[name]
	if !nowActive {
		delete(s.active, name)
	}
	s.recomputeLocked()

	zap.L().Debug("session: field toggled",
		zap.String("field", name),
		zap.Bool("active", nowActive),
	)
	return nowActive, nil
}

// ActiveFields returns the currently toggled field names in table order.
func (s *Session) ActiveFields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, f := range s.fields {
		if s.active[f.Name] {
			names = append(names, f.Name)
		}
	}
	return names
}

// SetFocusRadius updates the eligibility circle and reruns scoring and
// ranking.
func (s *Session) SetFocusRadius(radiusKm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus.RadiusKm = radiusKm
	s.recomputeLocked()
}

// Focus returns the current focus circle.
func (s *Session) Focus() scorer.Focus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus
}

// Results returns the latest per-point derived values, index-aligned
// with Points.
func (s *Session) Results() []scorer.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scorer.Result, len(s.results))
	copy(out, s.results)
	return out
}

// Points returns the loaded point collection.
func (s *Session) Points() []model.Point { return s.bundle.Points }

// Shelters returns the loaded shelter collection, possibly empty.
func (s *Session) Shelters() []model.Shelter { return s.bundle.Shelters }

// TopRanked returns the latest top-K selection.
func (s *Session) TopRanked() []ranking.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ranking.Entry, len(s.top))
	copy(out, s.top)
	return out
}

// recomputeLocked runs one full scoring pass followed by one ranking
// pass. Callers hold s.mu.
func (s *Session) recomputeLocked() {
	s.results = scorer.Compute(s.bundle.Points, s.fields, s.active, s.fitted, s.focus)
	s.top = ranking.SelectTop(s.bundle.Points, s.results, s.rankOpts.K, s.rankOpts.MinSeparationKm)
}

// NearestShelter returns the shelter closest to the given coordinate.
func (s *Session) NearestShelter(from model.Coordinate) (model.Shelter, error) {
	shelters := s.bundle.Shelters
	if len(shelters) == 0 {
		return model.Shelter{}, ErrNoShelters
	}

	best := shelters[0]
	bestDist := geo.DistanceKm(from, best.Coord)
	for _, sh := range shelters[1:] {
		if d := geo.DistanceKm(from, sh.Coord); d < bestDist {
			best, bestDist = sh, d
		}
	}
	return best, nil
}

// RouteTo synthesizes a route from start to the nearest shelter. The
// previous route is cleared before synthesis, so a failure leaves no
// stale route behind; on success the new route becomes current.
func (s *Session) RouteTo(start model.Coordinate) (*model.Route, model.Shelter, error) {
	shelter, err := s.NearestShelter(start)
	if err != nil {
		return nil, model.Shelter{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = nil

	route, err := routing.Synthesize(start, shelter.Coord, s.bundle.Segments, s.routeOpts)
	if err != nil {
		return nil, shelter, err
	}
	s.route = route

	zap.L().Info("session: route synthesized",
		zap.String("shelter", shelter.Name),
		zap.Int("points", len(route.Coords)),
	)
	return route, shelter, nil
}

// CurrentRoute returns the in-flight route, or nil when none is active.
func (s *Session) CurrentRoute() *model.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.route
}

// ClearRoute drops the current route. Idempotent; safe with no route
// active.
func (s *Session) ClearRoute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = nil
}
