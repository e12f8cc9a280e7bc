// Package geo provides the pure geometry primitives behind scoring,
// ranking, and route snapping: great-circle distance and
// nearest-point-on-polyline projection.
package geo

import (
	"math"

	"github.com/urban-climate-lab/resilience-cli/internal/model"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometers between two
// coordinates. Symmetric; zero for identical inputs. The square-root
// argument is clamped to [0,1] so antipodal and near-pole pairs never
// produce NaN from floating-point drift.
func DistanceKm(a, b model.Coordinate) float64 {
	if a.Equal(b) {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	h = math.Min(1, math.Max(0, h))

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Interpolate returns the point a fraction t of the way from a to b.
// Linear lng/lat interpolation is accurate enough at city extents, which
// is the only scale routes are synthesized at.
func Interpolate(a, b model.Coordinate, t float64) model.Coordinate {
	return model.Coordinate{
		Lng: a.Lng + t*(b.Lng-a.Lng),
		Lat: a.Lat + t*(b.Lat-a.Lat),
	}
}
