package consumo

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/geodata"
	"github.com/juanocv/magalu-cd-location/internal/normalize"
)

// DefaultSampleSize is how many demand-ranked municipalities feed the
// travel-time matrix by default.
const DefaultSampleSize = 500

var centroidColumns = []string{"CD_MUN", "NM_MUN", "sigla", "lon", "lat", "demand_weight"}

// CentroidsOptions configures the demand-ranked centroid sample.
type CentroidsOptions struct {
	MuniGPKG string // IBGE municipality polygons, first layer is used
	ScoreCSV string
	OutCSV   string
	N        int // top municipalities by demand weight, DefaultSampleSize when <= 0
}

// CentroidsResult reports how much of the sample carries a demand weight.
type CentroidsResult struct {
	RowsIn     int64
	RowsOut    int64
	WithWeight int64
}

// Counters flattens the result for the run log.
func (r *CentroidsResult) Counters() map[string]int64 {
	return map[string]int64{"with_weight": r.WithWeight}
}

type centroidRow struct {
	code   string
	nome   string
	sigla  string
	lon    float64
	lat    float64
	weight float64
}

// Centroids computes a planar centroid per municipality, attaches the demand
// weight and keeps the top N by weight. Municipalities without a score row
// sort last and only make the sample when fewer than N carry weights.
func Centroids(ctx context.Context, opts CentroidsOptions) (*CentroidsResult, error) {
	log := zap.L().With(zap.String("component", "consumo.centroids"))
	n := opts.N
	if n <= 0 {
		n = DefaultSampleSize
	}

	g, err := geodata.OpenGPKG(opts.MuniGPKG)
	if err != nil {
		return nil, err
	}
	defer g.Close() //nolint:errcheck

	layers, err := g.Layers(ctx)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, eris.Errorf("consumo: %s has no layers", opts.MuniGPKG)
	}
	src, err := g.ReadLayer(ctx, layers[0])
	if err != nil {
		return nil, err
	}
	if !src.HasColumn("CD_MUN") {
		return nil, eris.Errorf("consumo: layer %s in %s has no CD_MUN column", src.Name, opts.MuniGPKG)
	}

	t, err := fetcher.ReadTable(opts.ScoreCSV)
	if err != nil {
		return nil, err
	}
	codeIdx := t.Col("code_muni")
	weightIdx := t.Col("demand_weight")
	if codeIdx < 0 || weightIdx < 0 {
		return nil, eris.Errorf("consumo: %s must carry code_muni and demand_weight columns", opts.ScoreCSV)
	}
	siglaIdx := t.Col("sigla")

	type scoreRef struct {
		sigla  string
		weight float64
	}
	byCode := make(map[string]scoreRef, len(t.Rows))
	for i := range t.Rows {
		code := normalize.DigitsZFill(t.Cell(i, codeIdx), muniCodeWidth)
		if code == "" {
			continue
		}
		if _, ok := byCode[code]; !ok {
			byCode[code] = scoreRef{
				sigla:  t.Cell(i, siglaIdx),
				weight: parseFloat(t.Cell(i, weightIdx)),
			}
		}
	}

	rows := make([]centroidRow, 0, len(src.Features))
	for _, f := range src.Features {
		lon, lat, ok := geodata.Centroid(f.Geom)
		if !ok {
			lon, lat = math.NaN(), math.NaN()
		}
		row := centroidRow{
			code:   normalize.DigitsZFill(f.Str("CD_MUN"), muniCodeWidth),
			nome:   f.Str("NM_MUN"),
			lon:    lon,
			lat:    lat,
			weight: math.NaN(),
		}
		if ref, ok := byCode[row.code]; ok {
			row.sigla = ref.sigla
			row.weight = ref.weight
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		wi, wj := rows[i].weight, rows[j].weight
		switch {
		case math.IsNaN(wi):
			return false
		case math.IsNaN(wj):
			return true
		default:
			return wi > wj
		}
	})
	if len(rows) > n {
		rows = rows[:n]
	}

	res := &CentroidsResult{RowsIn: int64(len(src.Features)), RowsOut: int64(len(rows))}
	out := &fetcher.Table{Header: append([]string(nil), centroidColumns...)}
	for _, row := range rows {
		if !math.IsNaN(row.weight) {
			res.WithWeight++
		}
		out.Rows = append(out.Rows, []string{
			row.code, row.nome, row.sigla,
			formatFloat(row.lon), formatFloat(row.lat), formatFloat(row.weight),
		})
	}
	if err := out.WriteCSV(opts.OutCSV); err != nil {
		return nil, err
	}
	log.Info("centroid sample written",
		zap.String("path", opts.OutCSV),
		zap.Int64("municipalities", res.RowsIn),
		zap.Int64("selected", res.RowsOut),
		zap.Int64("with_weight", res.WithWeight))
	return res, nil
}
