// Package ranking selects the top vulnerability hotspots under a
// spatial buffer constraint.
package ranking

import (
	"sort"

	"go.uber.org/zap"

	"github.com/urban-climate-lab/resilience-cli/internal/geo"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/internal/scorer"
)

// Defaults matching the dashboard's ranking panel.
const (
	DefaultK               = 5
	DefaultMinSeparationKm = 2.0
)

// Entry is one accepted ranking result.
type Entry struct {
	Index int         `json:"index"`
	Point model.Point `json:"point"`
	Score float64     `json:"score"`
}

// SelectTop returns up to k in-focus points in descending score order,
// such that no two results are closer than minSeparationKm.
//
// The walk is greedy: points are considered best-score-first and a
// point is accepted only if it keeps the required separation from every
// point accepted before it. That approximation is intentional — the
// guarantee is the pairwise buffer, not a globally optimal score sum.
// Ties keep dataset order (stable sort), so equal-score runs rank
// deterministically.
func SelectTop(points []model.Point, results []scorer.Result, k int, minSeparationKm float64) []Entry {
	if k <= 0 {
		k = DefaultK
	}
	if minSeparationKm <= 0 {
		minSeparationKm = DefaultMinSeparationKm
	}

	var candidates []Entry
	for i := range points {
		if i < len(results) && results[i].InFocus {
			candidates = append(candidates, Entry{
				Index: i,
				Point: points[i],
				Score: results[i].Score,
			})
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})

	accepted := make([]Entry, 0, k)
	for _, cand := range candidates {
		if len(accepted) >= k {
			break
		}

		tooClose := false
		for _, prev := range accepted {
			if geo.DistanceKm(cand.Point.Coord, prev.Point.Coord) < minSeparationKm {
				tooClose = true
				break
			}
		}
		if !tooClose {
			accepted = append(accepted, cand)
		}
	}

	zap.L().Debug("ranking: selection complete",
		zap.Int("in_focus", len(candidates)),
		zap.Int("accepted", len(accepted)),
		zap.Float64("min_separation_km", minSeparationKm),
	)

	return accepted
}
