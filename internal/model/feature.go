// Package model defines the domain types shared across the scoring,
// ranking, and routing engines: loaded features stay immutable after
// load, derived values live in separate result types.
package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Coordinate is a geographic position in WGS84 (longitude, latitude).
type Coordinate struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Equal reports whether two coordinates are identical.
func (c Coordinate) Equal(o Coordinate) bool {
	return c.Lng == o.Lng && c.Lat == o.Lat
}

// Point is one vulnerability observation: a coordinate plus the raw
// attribute mapping from the source dataset. Points are loaded once and
// never mutated; per-recompute values (score, focus flag) are carried in
// scorer.Result keyed by point index.
type Point struct {
	Coord       Coordinate     `json:"coord"`
	Name        string         `json:"name"`
	Family      string         `json:"family,omitempty"`
	Description string         `json:"description,omitempty"`
	Attrs       map[string]any `json:"attrs"`
}

// Attr returns the named attribute coerced to float64. Missing,
// non-numeric, and non-finite values coerce to 0 so that dirty source
// data yields a neutral score instead of an error.
func (p *Point) Attr(name string) float64 {
	v, ok := p.Attrs[name]
	if !ok {
		return 0
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Shelter is a climate shelter destination.
type Shelter struct {
	Coord        Coordinate `json:"coord"`
	Name         string     `json:"name"`
	Neighborhood string     `json:"neighborhood,omitempty"`
	District     string     `json:"district,omitempty"`
}

// SegmentCollection holds disconnected road-like polylines. There is no
// adjacency between polylines; routing treats them purely as snap
// targets.
type SegmentCollection struct {
	Polylines [][]Coordinate `json:"polylines"`
}

// Empty reports whether the collection has no usable polylines.
func (s *SegmentCollection) Empty() bool {
	return s == nil || len(s.Polylines) == 0
}

// Route is an ordered coordinate sequence from a start point to a
// destination, produced fresh per routing request and superseded by the
// next one.
type Route struct {
	Coords []Coordinate `json:"coords"`
}
