package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urban-climate-lab/resilience-cli/internal/dataset"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/internal/scorer"
	"github.com/urban-climate-lab/resilience-cli/internal/session"
	"github.com/urban-climate-lab/resilience-cli/pkg/geocode"
)

var center = model.Coordinate{Lng: 2.1734, Lat: 41.3851}

func testSession(t *testing.T) *session.Session {
	t.Helper()

	var line []model.Coordinate
	for i := 0; i <= 50; i++ {
		line = append(line, model.Coordinate{Lng: 2.1734 + float64(i)*0.0005, Lat: 41.3851})
	}

	bundle := &dataset.Bundle{
		Points: []model.Point{
			{Name: "a", Coord: center, Attrs: map[string]any{"SPEI": 0.0}},
			{Name: "b", Coord: model.Coordinate{Lng: 2.21, Lat: 41.40}, Attrs: map[string]any{"SPEI": 5.0}},
			{Name: "c", Coord: model.Coordinate{Lng: 2.40, Lat: 41.60}, Attrs: map[string]any{"SPEI": 10.0}},
		},
		Shelters: []model.Shelter{
			{Name: "near", District: "Ciutat Vella", Coord: model.Coordinate{Lng: 2.18, Lat: 41.3851}},
		},
		Segments: &model.SegmentCollection{Polylines: [][]model.Coordinate{line}},
	}

	s, err := session.New(bundle, session.Options{
		Focus: scorer.Focus{Center: center, RadiusKm: 5},
	})
	require.NoError(t, err)
	return s
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv := New(testSession(t))
	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFieldsListsDefaults(t *testing.T) {
	srv := New(testSession(t))

	rec := doJSON(t, srv, http.MethodGet, "/api/fields", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	fields := decode[[]fieldView](t, rec)
	require.Len(t, fields, 4)
	for _, f := range fields {
		assert.False(t, f.Active)
	}
}

func TestToggleField(t *testing.T) {
	srv := New(testSession(t))

	rec := doJSON(t, srv, http.MethodPost, "/api/fields/SPEI/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, true, resp["active"])

	rec = doJSON(t, srv, http.MethodPost, "/api/fields/SPEI/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[map[string]any](t, rec)
	assert.Equal(t, false, resp["active"])
}

func TestToggleUnknownField(t *testing.T) {
	srv := New(testSession(t))

	rec := doJSON(t, srv, http.MethodPost, "/api/fields/nope/toggle", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScoresReflectToggles(t *testing.T) {
	srv := New(testSession(t))

	rec := doJSON(t, srv, http.MethodGet, "/api/scores", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	scores := decode[[]scoreView](t, rec)
	require.Len(t, scores, 3)
	for _, sc := range scores {
		assert.Zero(t, sc.Score)
	}
	assert.True(t, scores[0].InFocus)
	assert.False(t, scores[2].InFocus)

	doJSON(t, srv, http.MethodPost, "/api/fields/SPEI/toggle", nil)

	rec = doJSON(t, srv, http.MethodGet, "/api/scores", nil)
	scores = decode[[]scoreView](t, rec)
	assert.Greater(t, scores[2].Score, scores[0].Score)
}

func TestRankingListsFocusOnly(t *testing.T) {
	srv := New(testSession(t))
	doJSON(t, srv, http.MethodPost, "/api/fields/SPEI/toggle", nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/ranking", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	top := decode[[]scoreView](t, rec)
	require.Len(t, top, 2, "point c is outside the focus circle")
	assert.Equal(t, "b", top[0].Name, "b has the higher in-focus score")
}

func TestFocusRadius(t *testing.T) {
	srv := New(testSession(t))

	rec := doJSON(t, srv, http.MethodPut, "/api/focus-radius", map[string]any{"radius_km": 50.0})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/focus", nil)
	focus := decode[map[string]any](t, rec)
	assert.InDelta(t, 50.0, focus["radius_km"].(float64), 1e-9)

	rec = doJSON(t, srv, http.MethodGet, "/api/scores", nil)
	scores := decode[[]scoreView](t, rec)
	assert.True(t, scores[2].InFocus, "c is inside the widened circle")
}

func TestFocusRadiusRejectsNonPositive(t *testing.T) {
	srv := New(testSession(t))

	rec := doJSON(t, srv, http.MethodPut, "/api/focus-radius", map[string]any{"radius_km": 0.0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShelters(t *testing.T) {
	srv := New(testSession(t))

	rec := doJSON(t, srv, http.MethodGet, "/api/shelters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	shelters := decode[[]shelterView](t, rec)
	require.Len(t, shelters, 1)
	assert.Equal(t, "near", shelters[0].Name)
}

func TestRouteLifecycle(t *testing.T) {
	srv := New(testSession(t))

	// No route yet.
	rec := doJSON(t, srv, http.MethodGet, "/api/route", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Start on the segment line.
	rec = doJSON(t, srv, http.MethodPost, "/api/route", map[string]any{"lng": 2.1734, "lat": 41.3851})
	require.Equal(t, http.StatusCreated, rec.Code)
	route := decode[routeView](t, rec)
	assert.Equal(t, "near", route.Shelter.Name)
	require.GreaterOrEqual(t, len(route.Coords), 2)
	assert.True(t, route.Coords[0].Equal(center))

	rec = doJSON(t, srv, http.MethodGet, "/api/route", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/route", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/route", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouteStartTooFarFromRoads(t *testing.T) {
	srv := New(testSession(t))

	// ~5 km north of the segment line.
	rec := doJSON(t, srv, http.MethodPost, "/api/route", map[string]any{"lng": 2.1734, "lat": 41.43})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRouteRequiresStart(t *testing.T) {
	srv := New(testSession(t))

	rec := doJSON(t, srv, http.MethodPost, "/api/route", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubGeocoder struct {
	res *geocode.Result
	err error
}

func (s *stubGeocoder) Geocode(_ context.Context, _ string) (*geocode.Result, error) {
	return s.res, s.err
}

func TestRouteByQuery(t *testing.T) {
	g := &stubGeocoder{res: &geocode.Result{Latitude: 41.3851, Longitude: 2.1734, Source: "stub", Matched: true}}
	srv := New(testSession(t), WithGeocoder(g))

	rec := doJSON(t, srv, http.MethodPost, "/api/route", map[string]any{"query": "Plaça de Catalunya"})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestRouteByQueryNoMatch(t *testing.T) {
	g := &stubGeocoder{res: &geocode.Result{Source: "stub", Matched: false}}
	srv := New(testSession(t), WithGeocoder(g))

	rec := doJSON(t, srv, http.MethodPost, "/api/route", map[string]any{"query": "nowhere"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGeocodeEndpoint(t *testing.T) {
	g := &stubGeocoder{res: &geocode.Result{Latitude: 41.4, Longitude: 2.2, Source: "stub", Matched: true}}
	srv := New(testSession(t), WithGeocoder(g))

	rec := doJSON(t, srv, http.MethodGet, "/api/geocode?q=somewhere", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[geocode.Result](t, rec)
	assert.True(t, res.Matched)
}

func TestGeocodeEndpointErrors(t *testing.T) {
	// Not configured.
	srv := New(testSession(t))
	rec := doJSON(t, srv, http.MethodGet, "/api/geocode?q=x", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Missing query.
	g := &stubGeocoder{res: &geocode.Result{}}
	srv = New(testSession(t), WithGeocoder(g))
	rec = doJSON(t, srv, http.MethodGet, "/api/geocode", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Upstream failure.
	srv = New(testSession(t), WithGeocoder(&stubGeocoder{err: eris.New("boom")}))
	rec = doJSON(t, srv, http.MethodGet, "/api/geocode?q=x", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
