package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/urban-climate-lab/resilience-cli/internal/dataset"
	"github.com/urban-climate-lab/resilience-cli/internal/routing"
	"github.com/urban-climate-lab/resilience-cli/internal/scorer"
	"github.com/urban-climate-lab/resilience-cli/internal/session"
	"github.com/urban-climate-lab/resilience-cli/internal/store"
	"github.com/urban-climate-lab/resilience-cli/pkg/geocode"
)

// loadBundle reads the three datasets, preferring the store when a DSN
// is configured and falling back to direct file reads otherwise.
func loadBundle(ctx context.Context) (*dataset.Bundle, error) {
	if cfg.Store.DSN == "" {
		return dataset.LoadAll(ctx, dataset.Paths{
			Points:   cfg.Data.Points,
			Shelters: cfg.Data.Shelters,
			Segments: cfg.Data.Segments,
		})
	}

	st, err := store.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	points, err := st.LoadPoints(ctx)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, eris.New("store has no points; run 'datasets import' first")
	}
	shelters, err := st.LoadShelters(ctx)
	if err != nil {
		return nil, err
	}
	segments, err := st.LoadSegments(ctx)
	if err != nil {
		return nil, err
	}

	zap.L().Info("datasets loaded from store",
		zap.Int("points", len(points)),
		zap.Int("shelters", len(shelters)),
		zap.Int("polylines", len(segments.Polylines)),
	)
	return &dataset.Bundle{Points: points, Shelters: shelters, Segments: segments}, nil
}

// fieldTable returns the configured field table, loading the YAML
// override when one is set.
func fieldTable() (scorer.FieldTable, error) {
	if cfg.Scoring.FieldsFile == "" {
		return scorer.DefaultFields(), nil
	}
	return scorer.LoadFields(cfg.Scoring.FieldsFile)
}

// buildSession loads datasets and constructs a session from config.
func buildSession(ctx context.Context) (*session.Session, error) {
	bundle, err := loadBundle(ctx)
	if err != nil {
		return nil, err
	}
	fields, err := fieldTable()
	if err != nil {
		return nil, err
	}

	return session.New(bundle, session.Options{
		Fields: fields,
		Focus:  scorer.Focus{Center: cfg.Focus.Center(), RadiusKm: cfg.Focus.RadiusKm},
		Ranking: session.RankingOptions{
			K:               cfg.Ranking.K,
			MinSeparationKm: cfg.Ranking.MinSeparationKm,
		},
		Routing: routing.Params{
			MaxStartSnapKm: cfg.Routing.MaxStartSnapKm,
			KeepSnapKm:     cfg.Routing.KeepSnapKm,
			DedupKm:        cfg.Routing.DedupKm,
			Steps:          cfg.Routing.Steps,
		},
	})
}

// newGeocoder builds the geocoding cascade: literal coordinates first,
// then Nominatim when a user agent is configured. A nil cache is fine.
func newGeocoder(cache geocode.Cache) *geocode.CascadeClient {
	providers := []geocode.Provider{geocode.LiteralProvider{}}

	if cfg.Geocode.UserAgent != "" {
		nomOpts := []geocode.NominatimOption{
			geocode.WithNominatimBaseURL(cfg.Geocode.NominatimURL),
			geocode.WithNominatimRateLimit(rate.Limit(cfg.Geocode.RatePerSec), 1),
		}
		if cfg.Geocode.Viewbox != "" {
			nomOpts = append(nomOpts, geocode.WithNominatimViewbox(cfg.Geocode.Viewbox))
		}
		providers = append(providers, geocode.NewNominatimProvider(cfg.Geocode.UserAgent, nomOpts...))
	}

	var opts []geocode.CascadeOption
	if cache != nil {
		opts = append(opts, geocode.WithCache(cache))
	}
	return geocode.NewCascadeClient(providers, opts...)
}

// toggleFields applies an initial comma-separated field selection.
func toggleFields(sess *session.Session, names []string) error {
	for _, name := range names {
		if _, err := sess.ToggleField(name); err != nil {
			return err
		}
	}
	return nil
}

// openOutput returns the output writer for a command: the named file
// when set, stdout otherwise. The returned func closes the file.
func openOutput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output file %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}
