package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/urban-climate-lab/resilience-cli/internal/model"
)

var (
	barcelonaCenter = model.Coordinate{Lng: 2.1734, Lat: 41.3851}
	sagradaFamilia  = model.Coordinate{Lng: 2.1744, Lat: 41.4036}
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name      string
		a, b      model.Coordinate
		expected  float64
		tolerance float64
	}{
		{
			name:      "identical points",
			a:         barcelonaCenter,
			b:         barcelonaCenter,
			expected:  0,
			tolerance: 0,
		},
		{
			name:      "center to Sagrada Familia",
			a:         barcelonaCenter,
			b:         sagradaFamilia,
			expected:  2.06,
			tolerance: 0.05,
		},
		{
			name:      "one degree of latitude",
			a:         model.Coordinate{Lng: 0, Lat: 0},
			b:         model.Coordinate{Lng: 0, Lat: 1},
			expected:  111.19,
			tolerance: 0.1,
		},
		{
			name:      "antipodal points",
			a:         model.Coordinate{Lng: 0, Lat: 0},
			b:         model.Coordinate{Lng: 180, Lat: 0},
			expected:  math.Pi * 6371,
			tolerance: 1,
		},
		{
			name:      "near north pole",
			a:         model.Coordinate{Lng: 0, Lat: 89.9999},
			b:         model.Coordinate{Lng: 180, Lat: 89.9999},
			expected:  0.022,
			tolerance: 0.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DistanceKm(tt.a, tt.b)
			assert.False(t, math.IsNaN(d), "distance must never be NaN")
			assert.InDelta(t, tt.expected, d, tt.tolerance)
		})
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	pairs := []struct{ a, b model.Coordinate }{
		{barcelonaCenter, sagradaFamilia},
		{model.Coordinate{Lng: -73.99, Lat: 40.73}, model.Coordinate{Lng: 2.17, Lat: 41.38}},
		{model.Coordinate{Lng: 0, Lat: -89}, model.Coordinate{Lng: 90, Lat: 89}},
	}
	for _, p := range pairs {
		assert.Equal(t, DistanceKm(p.a, p.b), DistanceKm(p.b, p.a))
	}
}

func TestInterpolate(t *testing.T) {
	a := model.Coordinate{Lng: 2.0, Lat: 41.0}
	b := model.Coordinate{Lng: 2.2, Lat: 41.4}

	assert.Equal(t, a, Interpolate(a, b, 0))
	assert.Equal(t, b, Interpolate(a, b, 1))

	mid := Interpolate(a, b, 0.5)
	assert.InDelta(t, 2.1, mid.Lng, 1e-12)
	assert.InDelta(t, 41.2, mid.Lat, 1e-12)
}
