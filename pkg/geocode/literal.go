package geocode

import (
	"context"
	"strconv"
	"strings"
)

// LiteralProvider resolves queries that are already coordinates:
// "41.38, 2.17" style input, which is also how map clicks arrive. It
// never performs I/O, so it always sits first in the cascade.
type LiteralProvider struct{}

// Name implements Provider.
func (LiteralProvider) Name() string { return "literal" }

// Available implements Provider.
func (LiteralProvider) Available() bool { return true }

// Geocode implements Provider. Queries that do not parse as a
// "lat, lng" pair are a clean miss for the next provider.
func (LiteralProvider) Geocode(_ context.Context, query string) (*Result, error) {
	parts := strings.Split(query, ",")
	if len(parts) != 2 {
		return &Result{Matched: false, Source: "literal"}, nil
	}

	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return &Result{Matched: false, Source: "literal"}, nil
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return &Result{Matched: false, Source: "literal"}, nil
	}

	return &Result{
		Latitude:  lat,
		Longitude: lng,
		Source:    "literal",
		Matched:   true,
	}, nil
}
