package dataset

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urban-climate-lab/resilience-cli/internal/model"
)

// Paths names the three source files. Shelters and Segments are
// optional; Points is not.
type Paths struct {
	Points   string
	Shelters string
	Segments string
}

// Bundle holds everything a session needs from disk. Shelters and
// Segments may be nil when their datasets failed to load or were not
// configured — the session degrades routing instead of failing.
type Bundle struct {
	Points   []model.Point
	Shelters []model.Shelter
	Segments *model.SegmentCollection
}

// LoadAll loads the three datasets concurrently. A point-dataset
// failure is fatal: without points there is nothing to score or rank.
// Shelter and segment failures are logged and degrade their features
// (routing fails closed on an empty segment collection).
func LoadAll(ctx context.Context, paths Paths) (*Bundle, error) {
	if paths.Points == "" {
		return nil, eris.New("dataset: no point dataset configured")
	}

	bundle := &Bundle{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "dataset: load cancelled")
		}
		points, err := readPoints(paths.Points)
		if err != nil {
			return err
		}
		bundle.Points = points
		return nil
	})

	g.Go(func() error {
		if paths.Shelters == "" {
			return nil
		}
		shelters, err := ReadSheltersGeoJSON(paths.Shelters)
		if err != nil {
			zap.L().Warn("dataset: shelter dataset unavailable, routing destinations disabled",
				zap.String("path", paths.Shelters),
				zap.Error(err),
			)
			return nil
		}
		bundle.Shelters = shelters
		return nil
	})

	g.Go(func() error {
		if paths.Segments == "" {
			return nil
		}
		segments, err := readSegments(paths.Segments)
		if err != nil {
			zap.L().Warn("dataset: segment dataset unavailable, routing disabled",
				zap.String("path", paths.Segments),
				zap.Error(err),
			)
			return nil
		}
		bundle.Segments = segments
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("dataset: load complete",
		zap.Int("points", len(bundle.Points)),
		zap.Int("shelters", len(bundle.Shelters)),
		zap.Int("segment_polylines", polylineCount(bundle.Segments)),
	)
	return bundle, nil
}

// readPoints dispatches on file extension.
func readPoints(path string) ([]model.Point, error) {
	if isShapefile(path) {
		return ReadPointsShapefile(path)
	}
	return ReadPointsGeoJSON(path)
}

func readSegments(path string) (*model.SegmentCollection, error) {
	if isShapefile(path) {
		return ReadSegmentsShapefile(path)
	}
	return ReadSegmentsGeoJSON(path)
}

func isShapefile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".shp")
}

func polylineCount(s *model.SegmentCollection) int {
	if s == nil {
		return 0
	}
	return len(s.Polylines)
}
