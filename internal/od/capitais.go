package od

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/geodata"
	"github.com/juanocv/magalu-cd-location/pkg/osrm"
)

// capitalColumns is the schema of the capital OD table. dist_line_km is the
// great-circle distance, kept as a sanity check against the routed one.
var capitalColumns = []string{
	"origem", "destino", "dur_s", "dur_h", "dist_m", "dist_km", "dist_line_km",
}

// CapitaisOptions configures the capital matrix.
type CapitaisOptions struct {
	Client  osrm.Client
	Origins []Origin // DefaultOrigins when empty
	OutCSV  string
}

// CapitaisResult reports matrix coverage.
type CapitaisResult struct {
	Pairs     int64
	Reachable int64
}

// Counters flattens the result for the run log.
func (r *CapitaisResult) Counters() map[string]int64 {
	return map[string]int64{
		"pairs":     r.Pairs,
		"reachable": r.Reachable,
	}
}

// Capitais queries one /table call from the origin cities to every NE
// capital, requesting both durations and distances, and writes the long-form
// OD table. Unreachable pairs keep their row with empty duration and
// distance cells.
func Capitais(ctx context.Context, opts CapitaisOptions) (*CapitaisResult, error) {
	log := zap.L().With(zap.String("component", "od.capitais"))
	client := opts.Client
	if client == nil {
		client = osrm.NewClient()
	}
	origins := opts.Origins
	if len(origins) == 0 {
		origins = DefaultOrigins()
	}

	sources := make([]osrm.Point, len(origins))
	for i, o := range origins {
		sources[i] = osrm.Point{Lat: o.Lat, Lon: o.Lon}
	}
	dests := make([]osrm.Point, len(neCapitals))
	for i, c := range neCapitals {
		dests[i] = osrm.Point{Lat: c.Lat, Lon: c.Lon}
	}

	matrix, err := client.Table(ctx, osrm.TableRequest{
		Sources:      sources,
		Destinations: dests,
		WithDistance: true,
	})
	if err != nil {
		return nil, err
	}

	res := &CapitaisResult{}
	out := &fetcher.Table{Header: append([]string(nil), capitalColumns...)}
	for si, origin := range origins {
		for dj, capital := range neCapitals {
			durS := matrix.Durations[si][dj]
			distM := matrix.Distances[si][dj]
			line := geodata.GreatCircleKm(origin.Lat, origin.Lon, capital.Lat, capital.Lon)

			res.Pairs++
			if !math.IsNaN(durS) {
				res.Reachable++
			}
			out.Rows = append(out.Rows, []string{
				origin.Name, capital.Name,
				formatFloat(durS), formatFloat(durS / secondsPerHour),
				formatFloat(distM), formatFloat(distM / 1000.0),
				formatFloat(line),
			})
		}
	}
	if err := out.WriteCSV(opts.OutCSV); err != nil {
		return nil, err
	}
	log.Info("capital OD table written",
		zap.String("path", opts.OutCSV),
		zap.Int64("pairs", res.Pairs),
		zap.Int64("reachable", res.Reachable))
	return res, nil
}
