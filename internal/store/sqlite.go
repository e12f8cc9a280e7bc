package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/urban-climate-lab/resilience-cli/internal/dataset"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS points (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	family      TEXT,
	description TEXT,
	lng         REAL NOT NULL,
	lat         REAL NOT NULL,
	attrs       TEXT NOT NULL,
	imported_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS shelters (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	neighborhood TEXT,
	district     TEXT,
	lng          REAL NOT NULL,
	lat          REAL NOT NULL,
	imported_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS segments (
	id          TEXT PRIMARY KEY,
	seq         INTEGER NOT NULL,
	coords      TEXT NOT NULL,
	imported_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	lat       REAL NOT NULL,
	lng       REAL NOT NULL,
	label     TEXT,
	source    TEXT NOT NULL,
	matched   INTEGER NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_points_name ON points(name);
CREATE INDEX IF NOT EXISTS idx_segments_seq ON segments(seq);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ImportBundle replaces the stored datasets with the bundle's contents.
// Each table is rewritten inside a single transaction so a failed import
// never leaves a half-replaced dataset behind.
func (s *SQLiteStore) ImportBundle(ctx context.Context, b *dataset.Bundle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback()

	for _, table := range []string{"points", "shelters", "segments"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s", table)
		}
	}

	for _, p := range b.Points {
		attrsJSON, err := json.Marshal(p.Attrs)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal attrs for %s", p.Name)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO points (id, name, family, description, lng, lat, attrs) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), p.Name, p.Family, p.Description, p.Coord.Lng, p.Coord.Lat, string(attrsJSON),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert point %s", p.Name)
		}
	}

	for _, sh := range b.Shelters {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO shelters (id, name, neighborhood, district, lng, lat) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), sh.Name, sh.Neighborhood, sh.District, sh.Coord.Lng, sh.Coord.Lat,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert shelter %s", sh.Name)
		}
	}

	if b.Segments != nil {
		for i, line := range b.Segments.Polylines {
			coordsJSON, err := json.Marshal(line)
			if err != nil {
				return eris.Wrapf(err, "sqlite: marshal polyline %d", i)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO segments (id, seq, coords) VALUES (?, ?, ?)`,
				uuid.New().String(), i, string(coordsJSON),
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert polyline %d", i)
			}
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit import")
}

func (s *SQLiteStore) LoadPoints(ctx context.Context) ([]model.Point, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, family, description, lng, lat, attrs FROM points ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load points")
	}
	defer rows.Close()

	var points []model.Point
	for rows.Next() {
		var p model.Point
		var attrsJSON string
		if err := rows.Scan(&p.Name, &p.Family, &p.Description, &p.Coord.Lng, &p.Coord.Lat, &attrsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan point")
		}
		if err := json.Unmarshal([]byte(attrsJSON), &p.Attrs); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal attrs for %s", p.Name)
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: load points iterate")
}

func (s *SQLiteStore) LoadShelters(ctx context.Context) ([]model.Shelter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, neighborhood, district, lng, lat FROM shelters ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load shelters")
	}
	defer rows.Close()

	var shelters []model.Shelter
	for rows.Next() {
		var sh model.Shelter
		if err := rows.Scan(&sh.Name, &sh.Neighborhood, &sh.District, &sh.Coord.Lng, &sh.Coord.Lat); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan shelter")
		}
		shelters = append(shelters, sh)
	}
	return shelters, eris.Wrap(rows.Err(), "sqlite: load shelters iterate")
}

func (s *SQLiteStore) LoadSegments(ctx context.Context) (*model.SegmentCollection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT coords FROM segments ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load segments")
	}
	defer rows.Close()

	sc := &model.SegmentCollection{}
	for rows.Next() {
		var coordsJSON string
		if err := rows.Scan(&coordsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan polyline")
		}
		var line []model.Coordinate
		if err := json.Unmarshal([]byte(coordsJSON), &line); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal polyline")
		}
		sc.Polylines = append(sc.Polylines, line)
	}
	return sc, eris.Wrap(rows.Err(), "sqlite: load segments iterate")
}

func (s *SQLiteStore) GetGeocode(ctx context.Context, key string) (*geocode.Result, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT lat, lng, label, source, matched FROM geocode_cache WHERE key = ?`,
		key,
	)

	var res geocode.Result
	var label sql.NullString
	var matched int
	err := row.Scan(&res.Latitude, &res.Longitude, &label, &res.Source, &matched)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get geocode")
	}
	res.Label = label.String
	res.Matched = matched != 0
	return &res, true, nil
}

func (s *SQLiteStore) PutGeocode(ctx context.Context, key string, res *geocode.Result) error {
	matched := 0
	if res.Matched {
		matched = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (key, lat, lng, label, source, matched, cached_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   lat = excluded.lat, lng = excluded.lng, label = excluded.label,
		   source = excluded.source, matched = excluded.matched, cached_at = excluded.cached_at`,
		key, res.Latitude, res.Longitude, res.Label, res.Source, matched, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put geocode")
}
