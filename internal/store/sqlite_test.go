package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urban-climate-lab/resilience-cli/internal/dataset"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/pkg/geocode"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testImportBundle() *dataset.Bundle {
	return &dataset.Bundle{
		Points: []model.Point{
			{
				Coord:       model.Coordinate{Lng: 2.1734, Lat: 41.3851},
				Name:        "el Raval",
				Family:      "Barri",
				Description: "Ciutat Vella",
				Attrs:       map[string]any{"LST1": 34.2, "uhi2": 2.1, "SPEI": -1.3},
			},
			{
				Coord:  model.Coordinate{Lng: 2.19, Lat: 41.41},
				Name:   "la Sagrera",
				Family: "Barri",
				Attrs:  map[string]any{"LST1": 31.0, "uhi2": 1.4, "SPEI": -0.6},
			},
		},
		Shelters: []model.Shelter{
			{Coord: model.Coordinate{Lng: 2.175, Lat: 41.387}, Name: "Biblioteca Sant Pau", District: "Ciutat Vella"},
		},
		Segments: &model.SegmentCollection{
			Polylines: [][]model.Coordinate{
				{{Lng: 2.17, Lat: 41.38}, {Lng: 2.18, Lat: 41.39}},
				{{Lng: 2.20, Lat: 41.40}, {Lng: 2.21, Lat: 41.41}, {Lng: 2.22, Lat: 41.42}},
			},
		},
	}
}

func TestSQLiteStore_ImportAndLoadRoundtrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.ImportBundle(ctx, testImportBundle()))

	points, err := s.LoadPoints(ctx)
	require.NoError(t, err)
	require.Len(t, points, 2)
	// ORDER BY name puts el Raval first.
	assert.Equal(t, "el Raval", points[0].Name)
	assert.Equal(t, "Ciutat Vella", points[0].Description)
	assert.InDelta(t, 34.2, points[0].Attr("LST1"), 1e-9)
	assert.InDelta(t, 2.1734, points[0].Coord.Lng, 1e-9)

	shelters, err := s.LoadShelters(ctx)
	require.NoError(t, err)
	require.Len(t, shelters, 1)
	assert.Equal(t, "Biblioteca Sant Pau", shelters[0].Name)
	assert.Equal(t, "Ciutat Vella", shelters[0].District)

	segments, err := s.LoadSegments(ctx)
	require.NoError(t, err)
	require.Len(t, segments.Polylines, 2)
	assert.Len(t, segments.Polylines[1], 3)
	assert.InDelta(t, 2.20, segments.Polylines[1][0].Lng, 1e-9)
}

func TestSQLiteStore_ReimportReplaces(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.ImportBundle(ctx, testImportBundle()))

	smaller := &dataset.Bundle{
		Points: []model.Point{
			{Coord: model.Coordinate{Lng: 2.15, Lat: 41.37}, Name: "Sants", Attrs: map[string]any{"LST1": 30.0}},
		},
	}
	require.NoError(t, s.ImportBundle(ctx, smaller))

	points, err := s.LoadPoints(ctx)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Sants", points[0].Name)

	shelters, err := s.LoadShelters(ctx)
	require.NoError(t, err)
	assert.Empty(t, shelters)

	segments, err := s.LoadSegments(ctx)
	require.NoError(t, err)
	assert.Empty(t, segments.Polylines)
}

func TestSQLiteStore_GeocodeCacheMiss(t *testing.T) {
	s := newTestSQLite(t)

	res, ok, err := s.GetGeocode(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, res)
}

func TestSQLiteStore_GeocodeCacheRoundtrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	in := &geocode.Result{
		Latitude:  41.3851,
		Longitude: 2.1734,
		Label:     "Barcelona",
		Source:    "nominatim",
		Matched:   true,
	}
	require.NoError(t, s.PutGeocode(ctx, "key-1", in))

	out, ok, err := s.GetGeocode(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestSQLiteStore_GeocodeCacheUpsert(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	miss := &geocode.Result{Source: "nominatim", Matched: false}
	require.NoError(t, s.PutGeocode(ctx, "key-1", miss))

	hit := &geocode.Result{Latitude: 41.4, Longitude: 2.2, Source: "literal", Matched: true}
	require.NoError(t, s.PutGeocode(ctx, "key-1", hit))

	out, ok, err := s.GetGeocode(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, out.Matched)
	assert.Equal(t, "literal", out.Source)
}

func TestGeocodeCacheAdapter(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	var cache geocode.Cache = NewGeocodeCache(s)

	require.NoError(t, cache.Put(ctx, "k", &geocode.Result{Source: "literal", Matched: true}))
	res, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "literal", res.Source)
}

func TestOpen_SQLitePath(t *testing.T) {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(*SQLiteStore)
	assert.True(t, ok)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}
