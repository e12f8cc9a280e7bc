package session

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urban-climate-lab/resilience-cli/internal/dataset"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/internal/routing"
	"github.com/urban-climate-lab/resilience-cli/internal/scorer"
)

var center = model.Coordinate{Lng: 2.1734, Lat: 41.3851}

// testBundle builds a small but complete bundle: three scored points
// near the center, one shelter, and a dense segment line connecting the
// area.
func testBundle() *dataset.Bundle {
	var line []model.Coordinate
	for i := 0; i <= 50; i++ {
		line = append(line, model.Coordinate{Lng: 2.1734 + float64(i)*0.0005, Lat: 41.3851})
	}

	return &dataset.Bundle{
		Points: []model.Point{
			{Name: "a", Coord: center, Attrs: map[string]any{"SPEI": 0.0}},
			{Name: "b", Coord: model.Coordinate{Lng: 2.21, Lat: 41.40}, Attrs: map[string]any{"SPEI": 5.0}},
			{Name: "c", Coord: model.Coordinate{Lng: 2.40, Lat: 41.60}, Attrs: map[string]any{"SPEI": 10.0}},
		},
		Shelters: []model.Shelter{
			{Name: "near", Coord: model.Coordinate{Lng: 2.18, Lat: 41.3851}},
			{Name: "far", Coord: model.Coordinate{Lng: 2.30, Lat: 41.50}},
		},
		Segments: &model.SegmentCollection{Polylines: [][]model.Coordinate{line}},
	}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(testBundle(), Options{
		Focus: scorer.Focus{Center: center, RadiusKm: 5},
	})
	require.NoError(t, err)
	return s
}

func TestNewRequiresPoints(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)

	_, err = New(&dataset.Bundle{}, Options{})
	assert.Error(t, err)
}

func TestInitialRecomputeRunsOnLoad(t *testing.T) {
	s := newTestSession(t)

	results := s.Results()
	require.Len(t, results, 3)
	// No active fields yet: zero scores, but focus flags already set.
	assert.True(t, results[0].InFocus)
	assert.True(t, results[1].InFocus)
	assert.False(t, results[2].InFocus, "point c is ~25 km out")
	for _, r := range results {
		assert.Zero(t, r.Score)
	}
}

func TestToggleFieldRecomputes(t *testing.T) {
	s := newTestSession(t)

	active, err := s.ToggleField("SPEI")
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, []string{"SPEI"}, s.ActiveFields())

	results := s.Results()
	assert.Greater(t, results[1].Score, results[0].Score)

	// Ranking reflects the new scores: b outranks a, c is out of focus.
	top := s.TopRanked()
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Point.Name)

	// Toggling off restores the empty-selection sentinel.
	active, err = s.ToggleField("SPEI")
	require.NoError(t, err)
	assert.False(t, active)
	assert.Empty(t, s.ActiveFields())
	for _, r := range s.Results() {
		assert.Zero(t, r.Score)
	}
}

func TestToggleUnknownField(t *testing.T) {
	s := newTestSession(t)
	_, err := s.ToggleField("nonsense")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownField))
}

func TestSetFocusRadiusRecomputes(t *testing.T) {
	s := newTestSession(t)
	_, err := s.ToggleField("SPEI")
	require.NoError(t, err)

	// Shrink until only the center point qualifies.
	s.SetFocusRadius(0.5)
	results := s.Results()
	assert.True(t, results[0].InFocus)
	assert.False(t, results[1].InFocus)

	top := s.TopRanked()
	require.Len(t, top, 1)
	assert.Equal(t, "a", top[0].Point.Name)
}

func TestNearestShelter(t *testing.T) {
	s := newTestSession(t)

	sh, err := s.NearestShelter(center)
	require.NoError(t, err)
	assert.Equal(t, "near", sh.Name)
}

func TestRouteToLifecycle(t *testing.T) {
	s := newTestSession(t)

	start := model.Coordinate{Lng: 2.1750, Lat: 41.3851}
	route, shelter, err := s.RouteTo(start)
	require.NoError(t, err)
	assert.Equal(t, "near", shelter.Name)
	assert.Equal(t, start, route.Coords[0])
	assert.Equal(t, shelter.Coord, route.Coords[len(route.Coords)-1])
	assert.NotNil(t, s.CurrentRoute())

	// Clearing is idempotent.
	s.ClearRoute()
	assert.Nil(t, s.CurrentRoute())
	s.ClearRoute()
	assert.Nil(t, s.CurrentRoute())
}

func TestRouteToFailuresLeaveNoRoute(t *testing.T) {
	bundle := testBundle()
	bundle.Segments = nil
	s, err := New(bundle, Options{Focus: scorer.Focus{Center: center, RadiusKm: 5}})
	require.NoError(t, err)

	_, _, err = s.RouteTo(center)
	assert.True(t, eris.Is(err, routing.ErrNoRoadData))
	assert.Nil(t, s.CurrentRoute())
}

func TestRouteToStartUnreachableClearsPrevious(t *testing.T) {
	s := newTestSession(t)

	// First route succeeds and becomes current.
	_, _, err := s.RouteTo(model.Coordinate{Lng: 2.1750, Lat: 41.3851})
	require.NoError(t, err)
	require.NotNil(t, s.CurrentRoute())

	// Second request from an isolated start fails and supersedes it.
	_, _, err = s.RouteTo(model.Coordinate{Lng: 2.1750, Lat: 41.50})
	assert.True(t, eris.Is(err, routing.ErrStartUnreachable))
	assert.Nil(t, s.CurrentRoute())
}

func TestRouteToWithoutShelters(t *testing.T) {
	bundle := testBundle()
	bundle.Shelters = nil
	s, err := New(bundle, Options{Focus: scorer.Focus{Center: center, RadiusKm: 5}})
	require.NoError(t, err)

	_, _, err = s.RouteTo(center)
	assert.True(t, eris.Is(err, ErrNoShelters))
}
