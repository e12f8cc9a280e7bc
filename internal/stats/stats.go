// Package stats fits per-field normalization ranges over the full
// vulnerability point dataset. Fitting is a single batch pass; it is
// re-run when the dataset changes, never when the user's field
// selection changes.
package stats

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/urban-climate-lab/resilience-cli/internal/model"
)

// minRange floors the fitted range so normalization never divides by
// zero, even when every sample carries the same value.
const minRange = 1e-6

// Percentile bounds used for the normalization window. Trimming the
// tails keeps a handful of outlier sensors from flattening every other
// point's score.
const (
	lowPercentile  = 0.05
	highPercentile = 0.95
)

// FieldStats is the fitted normalization window for one field.
type FieldStats struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Range float64 `json:"range"`
}

// RawFunc derives a field's raw value from a point. The scorer supplies
// one per configured field.
type RawFunc func(p *model.Point) float64

// Fit computes FieldStats for every named field across all points.
// Non-finite samples are dropped; a field with zero valid samples falls
// back to {0, 1, 1} so downstream normalization stays well defined.
func Fit(points []model.Point, fields map[string]RawFunc) map[string]FieldStats {
	fitted := make(map[string]FieldStats, len(fields))

	for name, raw := range fields {
		samples := make([]float64, 0, len(points))
		for i := range points {
			v := raw(&points[i])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			samples = append(samples, v)
		}

		fitted[name] = fitOne(samples)
	}

	zap.L().Debug("stats: fitted field ranges",
		zap.Int("points", len(points)),
		zap.Int("fields", len(fitted)),
	)

	return fitted
}

// fitOne fits a single field's window from its valid samples.
func fitOne(samples []float64) FieldStats {
	if len(samples) == 0 {
		return FieldStats{Low: 0, High: 1, Range: 1}
	}

	sort.Float64s(samples)
	n := len(samples)

	low := samples[int(math.Floor(float64(n)*lowPercentile))]
	highIdx := int(math.Floor(float64(n) * highPercentile))
	if highIdx >= n {
		highIdx = n - 1
	}
	high := samples[highIdx]

	return FieldStats{
		Low:   low,
		High:  high,
		Range: math.Max(minRange, high-low),
	}
}
