package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/urban-climate-lab/resilience-cli/internal/export"
	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/internal/routing"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Synthesize a walking route to the nearest climate shelter",
	Long: `Snaps the start onto the road network, walks toward the nearest
shelter along nearby road segments, and prints the resulting polyline.

The start is either literal coordinates or a free-text address resolved
through the geocoding cascade.

Examples:
  # From literal coordinates, as GeoJSON
  route --from "41.3851, 2.1734" --format geojson

  # From an address (requires geocode.user_agent in config)
  route --from "Carrer de Mallorca 401, Barcelona"`,
	RunE: runRoute,
}

func init() {
	f := routeCmd.Flags()
	f.String("from", "", "start: \"lat, lng\" or a free-text address (required)")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table, csv, xlsx or geojson")
	_ = routeCmd.MarkFlagRequired("from")

	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("route"); err != nil {
		return err
	}

	from, _ := cmd.Flags().GetString("from")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	geocoder := newGeocoder(nil)
	res, err := geocoder.Geocode(ctx, from)
	if err != nil {
		return eris.Wrap(err, "route: geocode start")
	}
	if !res.Matched {
		return eris.Errorf("route: no match for %q", from)
	}
	start := model.Coordinate{Lng: res.Longitude, Lat: res.Latitude}

	sess, err := buildSession(ctx)
	if err != nil {
		return err
	}

	route, shelter, err := sess.RouteTo(start)
	if err != nil {
		switch {
		case eris.Is(err, routing.ErrStartUnreachable):
			return eris.Wrap(err, "route: start is too far from any road segment")
		default:
			return err
		}
	}

	zap.L().Info("route synthesized",
		zap.String("shelter", shelter.Name),
		zap.String("start_source", res.Source),
		zap.Int("points", len(route.Coords)),
	)

	w, closeOutput, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer closeOutput()

	if format == "geojson" {
		data, err := routeGeoJSON(route)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return eris.Wrap(err, "route: write geojson")
		}
		return nil
	}

	fmt.Fprintf(w, "Shelter: %s", shelter.Name)
	if shelter.District != "" {
		fmt.Fprintf(w, " (%s)", shelter.District)
	}
	fmt.Fprintln(w)

	table := &export.Table{Header: []string{"step", "lng", "lat"}}
	for i, c := range route.Coords {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(i),
			strconv.FormatFloat(c.Lng, 'f', 6, 64),
			strconv.FormatFloat(c.Lat, 'f', 6, 64),
		})
	}
	return table.Write(w, format, "route")
}

// routeGeoJSON encodes the route polyline as a GeoJSON LineString.
func routeGeoJSON(route *model.Route) ([]byte, error) {
	coords := make([]geom.Coord, len(route.Coords))
	for i, c := range route.Coords {
		coords[i] = geom.Coord{c.Lng, c.Lat}
	}
	ls := geom.NewLineString(geom.XY)
	if _, err := ls.SetCoords(coords); err != nil {
		return nil, eris.Wrap(err, "route: set coords")
	}
	data, err := geojson.Marshal(ls)
	if err != nil {
		return nil, eris.Wrap(err, "route: marshal geojson")
	}
	return data, nil
}
