// Package dataset loads the three source datasets — vulnerability
// points, climate shelters, and road-like segments — from GeoJSON or
// shapefile sources into the domain model.
package dataset

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/urban-climate-lab/resilience-cli/internal/model"
)

// Property names carried by the Barcelona source datasets.
const (
	propNeighborhood = "N_Barri"
	propFamily       = "FAMILIA"
	propDescription  = "Descripcio"
	propDistrict     = "N_Distri"
)

// ReadPointsGeoJSON decodes a vulnerability point dataset. Features
// without point geometry are skipped with a warning; attributes are
// carried verbatim so the scorer's field table decides what is numeric.
func ReadPointsGeoJSON(path string) ([]model.Point, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read points %s", path)
	}

	points := make([]model.Point, 0, len(fc.Features))
	for _, f := range fc.Features {
		coord, ok := pointCoord(f.Geometry)
		if !ok {
			zap.L().Warn("dataset: skipping non-point feature in point dataset",
				zap.String("path", path),
			)
			continue
		}

		points = append(points, model.Point{
			Coord:       coord,
			Name:        stringProp(f.Properties, propNeighborhood),
			Family:      stringProp(f.Properties, propFamily),
			Description: stringProp(f.Properties, propDescription),
			Attrs:       f.Properties,
		})
	}

	if len(points) == 0 {
		return nil, eris.Errorf("dataset: %s contains no point features", path)
	}
	return points, nil
}

// ReadSheltersGeoJSON decodes the climate shelter dataset.
func ReadSheltersGeoJSON(path string) ([]model.Shelter, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read shelters %s", path)
	}

	shelters := make([]model.Shelter, 0, len(fc.Features))
	for _, f := range fc.Features {
		coord, ok := pointCoord(f.Geometry)
		if !ok {
			continue
		}
		shelters = append(shelters, model.Shelter{
			Coord:        coord,
			Name:         stringProp(f.Properties, "name"),
			Neighborhood: stringProp(f.Properties, propNeighborhood),
			District:     stringProp(f.Properties, propDistrict),
		})
	}

	if len(shelters) == 0 {
		return nil, eris.Errorf("dataset: %s contains no shelter features", path)
	}
	return shelters, nil
}

// ReadSegmentsGeoJSON decodes the road-like segment dataset. Line and
// multi-line geometries are flattened into plain polylines; any other
// geometry type in the file is filtered out.
func ReadSegmentsGeoJSON(path string) (*model.SegmentCollection, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read segments %s", path)
	}

	collection := &model.SegmentCollection{}
	var skipped int
	for _, f := range fc.Features {
		lines := flattenLines(f.Geometry)
		if len(lines) == 0 {
			skipped++
			continue
		}
		collection.Polylines = append(collection.Polylines, lines...)
	}

	if skipped > 0 {
		zap.L().Debug("dataset: filtered non-line geometries from segment dataset",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if collection.Empty() {
		return nil, eris.Errorf("dataset: %s contains no line geometries", path)
	}
	return collection, nil
}

// readFeatureCollection reads and unmarshals one GeoJSON file.
func readFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read file")
	}

	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(data); err != nil {
		return nil, eris.Wrap(err, "parse GeoJSON")
	}
	return &fc, nil
}

// pointCoord extracts a coordinate from a point geometry.
func pointCoord(g geom.T) (model.Coordinate, bool) {
	pt, ok := g.(*geom.Point)
	if !ok || pt == nil {
		return model.Coordinate{}, false
	}
	c := pt.Coords()
	if len(c) < 2 {
		return model.Coordinate{}, false
	}
	return model.Coordinate{Lng: c.X(), Lat: c.Y()}, true
}

// flattenLines converts line-like geometries into polylines. Geometry
// collections are walked recursively; everything else yields nothing.
func flattenLines(g geom.T) [][]model.Coordinate {
	switch t := g.(type) {
	case *geom.LineString:
		if line := coordsToLine(t.Coords()); len(line) >= 2 {
			return [][]model.Coordinate{line}
		}
	case *geom.MultiLineString:
		var lines [][]model.Coordinate
		for i := 0; i < t.NumLineStrings(); i++ {
			if line := coordsToLine(t.LineString(i).Coords()); len(line) >= 2 {
				lines = append(lines, line)
			}
		}
		return lines
	case *geom.GeometryCollection:
		var lines [][]model.Coordinate
		for _, sub := range t.Geoms() {
			lines = append(lines, flattenLines(sub)...)
		}
		return lines
	}
	return nil
}

func coordsToLine(coords []geom.Coord) []model.Coordinate {
	line := make([]model.Coordinate, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		line = append(line, model.Coordinate{Lng: c.X(), Lat: c.Y()})
	}
	return line
}

// stringProp reads a string property, tolerating absent keys.
func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}
