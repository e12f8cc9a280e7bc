package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urban-climate-lab/resilience-cli/internal/config"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
)

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"heat", "SPEI"}, splitAndTrim("heat, SPEI"))
	assert.Equal(t, []string{"heat"}, splitAndTrim(" heat ,, "))
	assert.Nil(t, splitAndTrim(""))
}

func TestRouteGeoJSON(t *testing.T) {
	route := &model.Route{Coords: []model.Coordinate{
		{Lng: 2.1734, Lat: 41.3851},
		{Lng: 2.18, Lat: 41.39},
	}}

	data, err := routeGeoJSON(route)
	require.NoError(t, err)

	var parsed struct {
		Type        string      `json:"type"`
		Coordinates [][]float64 `json:"coordinates"`
	}
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "LineString", parsed.Type)
	require.Len(t, parsed.Coordinates, 2)
	assert.InDelta(t, 2.1734, parsed.Coordinates[0][0], 1e-9)
	assert.InDelta(t, 41.3851, parsed.Coordinates[0][1], 1e-9)
}

func TestNewGeocoderLiteralOnly(t *testing.T) {
	cfg = &config.Config{}
	t.Cleanup(func() { cfg = nil })

	g := newGeocoder(nil)
	res, err := g.Geocode(t.Context(), "41.3851, 2.1734")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "literal", res.Source)
}
