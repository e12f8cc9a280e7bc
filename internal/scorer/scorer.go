// Package scorer derives each point's composite vulnerability score
// from the user's active indicator selection, using ranges fitted by
// the stats package. Results are kept in a separate slice keyed by
// point index so the loaded dataset stays immutable.
package scorer

import (
	"math"

	"github.com/urban-climate-lab/resilience-cli/internal/geo"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/internal/stats"
)

// Result holds the derived values for one point after a recompute pass.
type Result struct {
	Score   float64 `json:"score"`
	InFocus bool    `json:"in_focus"`
}

// Focus defines the ranking eligibility circle.
type Focus struct {
	Center   model.Coordinate `json:"center"`
	RadiusKm float64          `json:"radius_km"`
}

// Normalize maps a raw value into [0,1] against the field's fitted
// window, clamped at both ends, then flips it when the field's polarity
// is inverted.
func Normalize(raw float64, spec FieldSpec, fs stats.FieldStats) float64 {
	v := (raw - fs.Low) / fs.Range
	v = math.Min(1, math.Max(0, v))
	if spec.Invert {
		v = 1 - v
	}
	return v
}

// Compute runs one full scoring pass over the entire point collection.
// The composite score is the mean of normalized active-field values, or
// 0 when no field is active. The focus flag is computed for every point
// regardless of the active selection: focus eligibility is independent
// of scoring.
func Compute(points []model.Point, table FieldTable, active map[string]bool, fitted map[string]stats.FieldStats, focus Focus) []Result {
	results := make([]Result, len(points))

	var activeSpecs []FieldSpec
	for _, f := range table {
		if active[f.Name] {
			activeSpecs = append(activeSpecs, f)
		}
	}

	for i := range points {
		p := &points[i]
		results[i].InFocus = geo.DistanceKm(focus.Center, p.Coord) <= focus.RadiusKm

		if len(activeSpecs) == 0 {
			continue
		}

		var sum float64
		for _, spec := range activeSpecs {
			sum += Normalize(spec.DeriveRaw(p), spec, fitted[spec.Name])
		}
		results[i].Score = sum / float64(len(activeSpecs))
	}

	return results
}
