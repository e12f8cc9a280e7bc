package geo

import (
	"math"

	"github.com/urban-climate-lab/resilience-cli/internal/model"
)

// Projection is the result of snapping a point onto a segment
// collection.
type Projection struct {
	Point      model.Coordinate
	DistanceKm float64
}

// NearestPointOnSegments projects p onto every polyline in the
// collection and returns the closest projected point plus its distance
// from p. When several polylines tie, the first one in collection order
// wins. The second return value is false when the collection holds no
// usable polyline.
func NearestPointOnSegments(p model.Coordinate, segments *model.SegmentCollection) (Projection, bool) {
	if segments.Empty() {
		return Projection{}, false
	}

	best := Projection{DistanceKm: math.Inf(1)}
	found := false
	for _, line := range segments.Polylines {
		if len(line) == 0 {
			continue
		}
		proj := nearestOnPolyline(p, line)
		if proj.DistanceKm < best.DistanceKm {
			best = proj
		}
		found = true
	}
	if !found {
		return Projection{}, false
	}
	return best, true
}

// nearestOnPolyline returns the closest point to p on a single polyline.
func nearestOnPolyline(p model.Coordinate, line []model.Coordinate) Projection {
	if len(line) == 1 {
		return Projection{Point: line[0], DistanceKm: DistanceKm(p, line[0])}
	}

	best := Projection{DistanceKm: math.Inf(1)}
	for i := 0; i < len(line)-1; i++ {
		candidate := closestOnSegment(p, line[i], line[i+1])
		d := DistanceKm(p, candidate)
		if d < best.DistanceKm {
			best = Projection{Point: candidate, DistanceKm: d}
		}
	}
	return best
}

// closestOnSegment projects p onto the segment [a, b] using a local
// equirectangular approximation: longitudes are scaled by cos(latitude)
// so the projection parameter is computed in a locally metric plane.
// Adequate for the sub-10km segments this system deals in.
func closestOnSegment(p, a, b model.Coordinate) model.Coordinate {
	if a.Equal(b) {
		return a
	}

	cosLat := math.Cos(p.Lat * math.Pi / 180)
	ax := a.Lng * cosLat
	bx := b.Lng * cosLat
	px := p.Lng * cosLat

	dx := bx - ax
	dy := b.Lat - a.Lat
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a
	}

	t := ((px-ax)*dx + (p.Lat-a.Lat)*dy) / lenSq
	t = math.Min(1, math.Max(0, t))

	return Interpolate(a, b, t)
}
