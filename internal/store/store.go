// Package store persists imported vulnerability datasets and geocoding
// results. Two drivers are provided: SQLite for single-machine use and
// Postgres for shared deployments.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/urban-climate-lab/resilience-cli/internal/dataset"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/pkg/geocode"
)

// Store defines the persistence interface for imported datasets and the
// geocode cache.
type Store interface {
	// Datasets
	ImportBundle(ctx context.Context, b *dataset.Bundle) error
	LoadPoints(ctx context.Context) ([]model.Point, error)
	LoadShelters(ctx context.Context) ([]model.Shelter, error)
	LoadSegments(ctx context.Context) (*model.SegmentCollection, error)

	// Geocode cache
	GetGeocode(ctx context.Context, key string) (*geocode.Result, bool, error)
	PutGeocode(ctx context.Context, key string, res *geocode.Result) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open dispatches on the DSN scheme: postgres:// connection strings get
// the pgx driver, anything else is treated as a SQLite path.
func Open(ctx context.Context, dsn string) (Store, error) {
	if dsn == "" {
		return nil, eris.New("store: empty dsn")
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgres(ctx, dsn, nil)
	}
	return NewSQLite(dsn)
}

// GeocodeCache adapts a Store to the geocode.Cache interface so the
// cascade client can persist lookups without knowing about storage.
type GeocodeCache struct {
	s Store
}

// NewGeocodeCache wraps a store as a geocode cache.
func NewGeocodeCache(s Store) *GeocodeCache {
	return &GeocodeCache{s: s}
}

func (c *GeocodeCache) Get(ctx context.Context, key string) (*geocode.Result, bool, error) {
	return c.s.GetGeocode(ctx, key)
}

func (c *GeocodeCache) Put(ctx context.Context, key string, res *geocode.Result) error {
	return c.s.PutGeocode(ctx, key, res)
}
