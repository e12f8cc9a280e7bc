package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/urban-climate-lab/resilience-cli/internal/dataset"
	"github.com/urban-climate-lab/resilience-cli/internal/db"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/pkg/geocode"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS points (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL,
	family      TEXT,
	description TEXT,
	lng         DOUBLE PRECISION NOT NULL,
	lat         DOUBLE PRECISION NOT NULL,
	attrs       JSONB NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS shelters (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL,
	neighborhood TEXT,
	district     TEXT,
	lng          DOUBLE PRECISION NOT NULL,
	lat          DOUBLE PRECISION NOT NULL,
	imported_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS segments (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	seq         INTEGER NOT NULL,
	coords      JSONB NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	lat       DOUBLE PRECISION NOT NULL,
	lng       DOUBLE PRECISION NOT NULL,
	label     TEXT,
	source    TEXT NOT NULL,
	matched   BOOLEAN NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_points_name ON points(name);
CREATE INDEX IF NOT EXISTS idx_segments_seq ON segments(seq);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ImportBundle replaces the stored datasets with the bundle's contents.
// Point rows go through the COPY protocol since census-section datasets
// run into the thousands of rows.
func (s *PostgresStore) ImportBundle(ctx context.Context, b *dataset.Bundle) error {
	for _, table := range []string{"points", "shelters", "segments"} {
		if _, err := s.pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "postgres: clear %s", table)
		}
	}

	pointRows := make([][]any, 0, len(b.Points))
	for _, p := range b.Points {
		attrsJSON, err := json.Marshal(p.Attrs)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal attrs for %s", p.Name)
		}
		pointRows = append(pointRows, []any{
			uuid.New().String(), p.Name, p.Family, p.Description, p.Coord.Lng, p.Coord.Lat, string(attrsJSON),
		})
	}
	if _, err := db.CopyRows(ctx, s.pool, "points",
		[]string{"id", "name", "family", "description", "lng", "lat", "attrs"}, pointRows); err != nil {
		return eris.Wrap(err, "postgres: import points")
	}

	for _, sh := range b.Shelters {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO shelters (id, name, neighborhood, district, lng, lat) VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New().String(), sh.Name, sh.Neighborhood, sh.District, sh.Coord.Lng, sh.Coord.Lat,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert shelter %s", sh.Name)
		}
	}

	if b.Segments != nil {
		for i, line := range b.Segments.Polylines {
			coordsJSON, err := json.Marshal(line)
			if err != nil {
				return eris.Wrapf(err, "postgres: marshal polyline %d", i)
			}
			_, err = s.pool.Exec(ctx,
				`INSERT INTO segments (id, seq, coords) VALUES ($1, $2, $3)`,
				uuid.New().String(), i, string(coordsJSON),
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: insert polyline %d", i)
			}
		}
	}

	return nil
}

func (s *PostgresStore) LoadPoints(ctx context.Context) ([]model.Point, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, family, description, lng, lat, attrs FROM points ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load points")
	}
	defer rows.Close()

	var points []model.Point
	for rows.Next() {
		var p model.Point
		var attrsJSON []byte
		if err := rows.Scan(&p.Name, &p.Family, &p.Description, &p.Coord.Lng, &p.Coord.Lat, &attrsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan point")
		}
		if err := json.Unmarshal(attrsJSON, &p.Attrs); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal attrs for %s", p.Name)
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: load points iterate")
}

func (s *PostgresStore) LoadShelters(ctx context.Context) ([]model.Shelter, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, neighborhood, district, lng, lat FROM shelters ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load shelters")
	}
	defer rows.Close()

	var shelters []model.Shelter
	for rows.Next() {
		var sh model.Shelter
		if err := rows.Scan(&sh.Name, &sh.Neighborhood, &sh.District, &sh.Coord.Lng, &sh.Coord.Lat); err != nil {
			return nil, eris.Wrap(err, "postgres: scan shelter")
		}
		shelters = append(shelters, sh)
	}
	return shelters, eris.Wrap(rows.Err(), "postgres: load shelters iterate")
}

func (s *PostgresStore) LoadSegments(ctx context.Context) (*model.SegmentCollection, error) {
	rows, err := s.pool.Query(ctx, `SELECT coords FROM segments ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load segments")
	}
	defer rows.Close()

	sc := &model.SegmentCollection{}
	for rows.Next() {
		var coordsJSON []byte
		if err := rows.Scan(&coordsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan polyline")
		}
		var line []model.Coordinate
		if err := json.Unmarshal(coordsJSON, &line); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal polyline")
		}
		sc.Polylines = append(sc.Polylines, line)
	}
	return sc, eris.Wrap(rows.Err(), "postgres: load segments iterate")
}

func (s *PostgresStore) GetGeocode(ctx context.Context, key string) (*geocode.Result, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT lat, lng, label, source, matched FROM geocode_cache WHERE key = $1`,
		key,
	)

	var res geocode.Result
	err := row.Scan(&res.Latitude, &res.Longitude, &res.Label, &res.Source, &res.Matched)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get geocode")
	}
	return &res, true, nil
}

func (s *PostgresStore) PutGeocode(ctx context.Context, key string, res *geocode.Result) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO geocode_cache (key, lat, lng, label, source, matched, cached_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (key) DO UPDATE SET
		   lat = EXCLUDED.lat, lng = EXCLUDED.lng, label = EXCLUDED.label,
		   source = EXCLUDED.source, matched = EXCLUDED.matched, cached_at = EXCLUDED.cached_at`,
		key, res.Latitude, res.Longitude, res.Label, res.Source, res.Matched, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: put geocode")
}
