package routing

import (
	"sync"
	"time"

	"github.com/urban-climate-lab/resilience-cli/internal/geo"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
)

// Track parametrizes a route by cumulative distance along its own
// coordinate sequence, so animation advances at constant ground speed
// regardless of how unevenly the snapped points are spaced.
type Track struct {
	coords     []model.Coordinate
	cumulative []float64
	totalKm    float64
}

// NewTrack builds the cumulative-distance parametrization for a route.
func NewTrack(route *model.Route) *Track {
	t := &Track{coords: route.Coords}
	t.cumulative = make([]float64, len(route.Coords))
	for i := 1; i < len(route.Coords); i++ {
		t.cumulative[i] = t.cumulative[i-1] + geo.DistanceKm(route.Coords[i-1], route.Coords[i])
	}
	if n := len(t.cumulative); n > 0 {
		t.totalKm = t.cumulative[n-1]
	}
	return t
}

// LengthKm returns the total route length.
func (t *Track) LengthKm() float64 { return t.totalKm }

// PositionAt returns the coordinate a fraction frac (clamped to [0,1])
// of the way along the route by distance.
func (t *Track) PositionAt(frac float64) model.Coordinate {
	if len(t.coords) == 0 {
		return model.Coordinate{}
	}
	if frac <= 0 || t.totalKm == 0 {
		return t.coords[0]
	}
	if frac >= 1 {
		return t.coords[len(t.coords)-1]
	}

	target := frac * t.totalKm
	for i := 1; i < len(t.cumulative); i++ {
		if t.cumulative[i] >= target {
			legStart := t.cumulative[i-1]
			legLen := t.cumulative[i] - legStart
			if legLen == 0 {
				return t.coords[i]
			}
			return geo.Interpolate(t.coords[i-1], t.coords[i], (target-legStart)/legLen)
		}
	}
	return t.coords[len(t.coords)-1]
}

// Animator advances a displayed position along a track over a fixed
// wall-clock duration in a fixed number of steps. It holds no exclusive
// resource: Clear is idempotent and safe with no animation active, and
// starting a new animation supersedes the previous one.
type Animator struct {
	mu     sync.Mutex
	cancel chan struct{}
}

// Animate runs fn once per step with the interpolated position,
// finishing after duration. It returns immediately; a later Animate or
// Clear stops the run early.
func (a *Animator) Animate(track *Track, steps int, duration time.Duration, fn func(model.Coordinate)) {
	if steps <= 0 {
		steps = 1
	}

	a.mu.Lock()
	if a.cancel != nil {
		close(a.cancel)
	}
	cancel := make(chan struct{})
	a.cancel = cancel
	a.mu.Unlock()

	interval := duration / time.Duration(steps)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 1; i <= steps; i++ {
			select {
			case <-cancel:
				return
			case <-ticker.C:
				fn(track.PositionAt(float64(i) / float64(steps)))
			}
		}
	}()
}

// Clear stops any in-flight animation. Safe to call repeatedly.
func (a *Animator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		close(a.cancel)
		a.cancel = nil
	}
}
