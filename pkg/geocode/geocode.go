// Package geocode resolves free-text location input — a street address,
// a place name, or a raw "lat, lng" pair — into a coordinate. Providers
// are tried in order by a cascade client; a miss is a recoverable
// no-result, never an error.
package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
)

// Result is one geocoding outcome. Matched=false is a clean no-result.
type Result struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label,omitempty"`
	Source    string  `json:"source"`
	Matched   bool    `json:"matched"`
}

// Provider is a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, query string) (*Result, error)
	Available() bool
}

// Cache persists geocode results across sessions. Implementations may
// return (nil, false, nil) for a clean miss.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Put(ctx context.Context, key string, result *Result) error
}

// CacheKey returns SHA-256 hex of the normalized query.
func CacheKey(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}
