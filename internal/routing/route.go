// Package routing synthesizes a walkable-looking path between two
// coordinates by snapping onto a sparse collection of disconnected
// road-like segments. It is a path-approximation heuristic, not graph
// search: no connectivity or reachability is modeled, and it fails
// closed rather than returning a nonsensical route.
package routing

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urban-climate-lab/resilience-cli/internal/geo"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
)

// Routing failure reasons. Callers match with eris.Is and surface the
// reason to the user; none of them corrupts session state.
var (
	// ErrNoRoadData means the segment dataset is absent or empty.
	ErrNoRoadData = eris.New("routing: no road data available")
	// ErrStartUnreachable means the start point is farther from every
	// known segment than the snap threshold allows.
	ErrStartUnreachable = eris.New("routing: start point too far from any mapped segment")
	// ErrRouteTooShort means deduplication collapsed the path below two
	// points.
	ErrRouteTooShort = eris.New("routing: synthesized route has fewer than two points")
)

// Params tunes the snapping heuristic. Zero values fall back to the
// dashboard defaults via Normalize.
type Params struct {
	// MaxStartSnapKm is the hard ceiling on the start projection
	// distance. The destination side has no such check: destinations
	// are known shelters expected to sit near mapped data.
	MaxStartSnapKm float64
	// KeepSnapKm is the drift tolerance for intermediate targets;
	// targets snapping farther than this are discarded so the route
	// hugs available segments.
	KeepSnapKm float64
	// DedupKm collapses consecutive points closer than this.
	DedupKm float64
	// Steps is the number of evenly spaced interpolation targets
	// between the two projected endpoints.
	Steps int
}

// Dashboard defaults for the snapping heuristic.
const (
	DefaultMaxStartSnapKm = 0.1
	DefaultKeepSnapKm     = 0.05
	DefaultDedupKm        = 0.005
	DefaultSteps          = 19
)

// Normalize fills unset parameters with defaults.
func (p Params) Normalize() Params {
	if p.MaxStartSnapKm <= 0 {
		p.MaxStartSnapKm = DefaultMaxStartSnapKm
	}
	if p.KeepSnapKm <= 0 {
		p.KeepSnapKm = DefaultKeepSnapKm
	}
	if p.DedupKm <= 0 {
		p.DedupKm = DefaultDedupKm
	}
	if p.Steps <= 0 {
		p.Steps = DefaultSteps
	}
	return p
}

// Synthesize builds an ordered coordinate sequence from start to end
// that stays close to the given segments. The result always begins with
// exactly start and ends with exactly end. Work is bounded by the fixed
// step count plus one linear segment scan per step.
func Synthesize(start, end model.Coordinate, segments *model.SegmentCollection, params Params) (*model.Route, error) {
	params = params.Normalize()

	if segments.Empty() {
		return nil, ErrNoRoadData
	}

	startProj, ok := geo.NearestPointOnSegments(start, segments)
	if !ok {
		return nil, ErrNoRoadData
	}
	if startProj.DistanceKm > params.MaxStartSnapKm {
		zap.L().Debug("routing: start beyond snap threshold",
			zap.Float64("distance_km", startProj.DistanceKm),
			zap.Float64("threshold_km", params.MaxStartSnapKm),
		)
		return nil, ErrStartUnreachable
	}

	// The destination snaps unconditionally.
	endProj, ok := geo.NearestPointOnSegments(end, segments)
	if !ok {
		return nil, ErrNoRoadData
	}

	coords := make([]model.Coordinate, 0, params.Steps+4)
	coords = append(coords, start, startProj.Point)

	// Walk evenly spaced targets along the straight line between the
	// two projections, keeping only targets that snap back within the
	// drift tolerance.
	for i := 1; i <= params.Steps; i++ {
		t := float64(i) / float64(params.Steps+1)
		target := geo.Interpolate(startProj.Point, endProj.Point, t)

		proj, ok := geo.NearestPointOnSegments(target, segments)
		if ok && proj.DistanceKm <= params.KeepSnapKm {
			coords = append(coords, proj.Point)
		}
	}

	coords = append(coords, endProj.Point, end)
	coords = dedupe(coords, params.DedupKm)

	if len(coords) < 2 {
		return nil, ErrRouteTooShort
	}

	// Deduplication may have folded the terminal point into its own
	// projection; the sequence must still end at exactly end.
	if !coords[len(coords)-1].Equal(end) {
		coords[len(coords)-1] = end
	}

	return &model.Route{Coords: coords}, nil
}

// dedupe removes consecutive points closer than minKm, avoiding
// degenerate zero-length legs. The first point is always kept.
func dedupe(coords []model.Coordinate, minKm float64) []model.Coordinate {
	if len(coords) == 0 {
		return coords
	}
	out := coords[:1]
	for _, c := range coords[1:] {
		if geo.DistanceKm(out[len(out)-1], c) >= minKm {
			out = append(out, c)
		}
	}
	return out
}
