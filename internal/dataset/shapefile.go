package dataset

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urban-climate-lab/resilience-cli/internal/model"
)

// ReadPointsShapefile reads a vulnerability point dataset from an ESRI
// shapefile: point shapes become coordinates and every DBF attribute is
// carried into the point's attribute map. City open-data portals
// commonly publish the same layers as both GeoJSON and shapefile.
func ReadPointsShapefile(path string) ([]model.Point, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	var points []model.Point

	for reader.Next() {
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			continue
		}

		attrs := make(map[string]any, len(fields))
		for i, f := range fields {
			attrs[fieldName(f)] = reader.Attribute(i)
		}

		points = append(points, model.Point{
			Coord:       model.Coordinate{Lng: pt.X, Lat: pt.Y},
			Name:        stringProp(attrs, propNeighborhood),
			Family:      stringProp(attrs, propFamily),
			Description: stringProp(attrs, propDescription),
			Attrs:       attrs,
		})
	}

	if len(points) == 0 {
		return nil, eris.Errorf("dataset: shapefile %s contains no point shapes", path)
	}

	zap.L().Info("dataset: loaded points from shapefile",
		zap.String("path", path),
		zap.Int("points", len(points)),
	)
	return points, nil
}

// ReadSegmentsShapefile reads road-like polylines from an ESRI
// shapefile, splitting multi-part shapes into independent polylines.
// Non-polyline shapes are filtered out.
func ReadSegmentsShapefile(path string) (*model.SegmentCollection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	collection := &model.SegmentCollection{}
	for reader.Next() {
		_, shape := reader.Shape()
		pl, ok := shape.(*shp.PolyLine)
		if !ok {
			continue
		}
		collection.Polylines = append(collection.Polylines, polyLineParts(pl)...)
	}

	if collection.Empty() {
		return nil, eris.Errorf("dataset: shapefile %s contains no polylines", path)
	}
	return collection, nil
}

// polyLineParts splits a shapefile PolyLine into its parts.
func polyLineParts(pl *shp.PolyLine) [][]model.Coordinate {
	if pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	var lines [][]model.Coordinate
	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		end := int32(len(pl.Points))
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		}

		line := make([]model.Coordinate, 0, end-start)
		for j := start; j < end; j++ {
			line = append(line, model.Coordinate{Lng: pl.Points[j].X, Lat: pl.Points[j].Y})
		}
		if len(line) >= 2 {
			lines = append(lines, line)
		}
	}
	return lines
}

// fieldName trims the NUL padding DBF headers carry.
func fieldName(f shp.Field) string {
	return strings.TrimRight(f.String(), "\x00")
}
