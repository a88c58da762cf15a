package od

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/geodata"
	"github.com/juanocv/magalu-cd-location/internal/normalize"
	"github.com/juanocv/magalu-cd-location/internal/stats"
	"github.com/juanocv/magalu-cd-location/pkg/osrm"
)

// DefaultTopN matches the study's municipal sample size.
const DefaultTopN = 500

// IBGE municipality codes are 7 digits.
const muniCodeWidth = 7

var slaSummaryColumns = []string{
	"origem", "N", "tempo_medio_ponderado_h", "p50_h", "p80_h", "p90_h",
}

// SLAOptions configures the weighted SLA run.
type SLAOptions struct {
	Client     osrm.Client
	Origins    []Origin // DefaultOrigins when empty
	MuniGPKG   string   // IBGE municipality polygons, first layer is used
	ScoreCSV   string   // demand scores with code_muni and demand_weight
	OutOD      string
	OutSummary string
	TopN       int // DefaultTopN when <= 0
	Chunk      int // destinations per /table call, client default when <= 0
}

// SLAResult reports sample size and per-origin reachability.
type SLAResult struct {
	RowsIn     int64
	Selected   int64
	NoGeometry int64
	Reachable  map[string]int64
}

// Counters flattens the result for the run log.
func (r *SLAResult) Counters() map[string]int64 {
	out := map[string]int64{
		"selected":    r.Selected,
		"no_geometry": r.NoGeometry,
	}
	for label, n := range r.Reachable {
		out["reachable_"+label] = n
	}
	return out
}

type slaRow struct {
	code   string
	nome   string
	sigla  string
	lon    float64
	lat    float64
	weight float64
	wNorm  float64
}

// SLA ranks municipality centroids by demand weight, keeps the top N,
// renormalizes the weights over that subset and queries chunked travel-time
// matrices from each origin. It writes the per-municipality OD table and the
// weighted mean / percentile summary per origin. OSRM failures abort the
// run; unreachable municipalities stay NaN and drop out of the weighted
// aggregates pairwise.
func SLA(ctx context.Context, opts SLAOptions) (*SLAResult, error) {
	log := zap.L().With(zap.String("component", "od.sla"))
	client := opts.Client
	if client == nil {
		client = osrm.NewClient()
	}
	origins := opts.Origins
	if len(origins) == 0 {
		origins = DefaultOrigins()
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
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
		return nil, eris.Errorf("od: %s has no layers", opts.MuniGPKG)
	}
	src, err := g.ReadLayer(ctx, layers[0])
	if err != nil {
		return nil, err
	}
	if !src.HasColumn("CD_MUN") {
		return nil, eris.Errorf("od: layer %s in %s has no CD_MUN column", src.Name, opts.MuniGPKG)
	}

	t, err := fetcher.ReadTable(opts.ScoreCSV)
	if err != nil {
		return nil, err
	}
	codeIdx := t.Col("code_muni")
	weightIdx := t.Col("demand_weight")
	if codeIdx < 0 || weightIdx < 0 {
		return nil, eris.Errorf("od: %s must carry code_muni and demand_weight columns", opts.ScoreCSV)
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

	res := &SLAResult{RowsIn: int64(len(src.Features)), Reachable: map[string]int64{}}
	rows := make([]slaRow, 0, len(src.Features))
	for _, f := range src.Features {
		lon, lat, ok := geodata.Centroid(f.Geom)
		if !ok {
			res.NoGeometry++
			continue
		}
		row := slaRow{
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
	if len(rows) == 0 {
		return nil, eris.Errorf("od: no municipality geometries to rank in %s", opts.MuniGPKG)
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
	if len(rows) > topN {
		rows = rows[:topN]
	}
	res.Selected = int64(len(rows))

	// Weights renormalized over the kept subset.
	var wsum float64
	for _, row := range rows {
		if !math.IsNaN(row.weight) {
			wsum += row.weight
		}
	}
	for i := range rows {
		if wsum > 0 {
			rows[i].wNorm = rows[i].weight / wsum
		} else {
			rows[i].wNorm = 0
		}
	}
	log.Info("municipality sample ranked",
		zap.Int64("municipalities", res.RowsIn),
		zap.Int64("selected", res.Selected),
		zap.Int64("no_geometry", res.NoGeometry))

	sources := make([]osrm.Point, len(origins))
	for i, o := range origins {
		sources[i] = osrm.Point{Lat: o.Lat, Lon: o.Lon}
	}
	dests := make([]osrm.Point, len(rows))
	for i, row := range rows {
		dests[i] = osrm.Point{Lat: row.lat, Lon: row.lon}
	}
	matrix, err := client.TableChunked(ctx, osrm.TableRequest{
		Sources:      sources,
		Destinations: dests,
	}, opts.Chunk)
	if err != nil {
		return nil, err
	}

	header := []string{"code_muni", "nome_muni", "sigla", "lon", "lat", "demand_weight", "w_norm"}
	for _, o := range origins {
		header = append(header, "dur_h_"+o.Name)
	}
	out := &fetcher.Table{Header: header}
	for j, row := range rows {
		cells := []string{
			row.code, row.nome, row.sigla,
			formatFloat(row.lon), formatFloat(row.lat),
			formatFloat(row.weight), formatFloat(row.wNorm),
		}
		for si, o := range origins {
			durH := matrix.Durations[si][j] / secondsPerHour
			if !math.IsNaN(durH) {
				res.Reachable[o.Name]++
			}
			cells = append(cells, formatFloat(durH))
		}
		out.Rows = append(out.Rows, cells)
	}
	if err := out.WriteCSV(opts.OutOD); err != nil {
		return nil, err
	}
	log.Info("municipal OD table written", zap.String("path", opts.OutOD), zap.Int64("rows", res.Selected))

	wNorms := make([]float64, len(rows))
	for i, row := range rows {
		wNorms[i] = row.wNorm
	}
	summary := &fetcher.Table{Header: append([]string(nil), slaSummaryColumns...)}
	for si, o := range origins {
		durH := make([]float64, len(rows))
		for j := range rows {
			durH[j] = matrix.Durations[si][j] / secondsPerHour
		}
		mean := stats.WeightedSum(durH, wNorms)
		qs := stats.WeightedQuantiles(durH, wNorms, 0.5, 0.8, 0.9)
		summary.Rows = append(summary.Rows, []string{
			o.Name, strconv.Itoa(topN),
			formatFloat(mean), formatFloat(qs[0]), formatFloat(qs[1]), formatFloat(qs[2]),
		})
	}
	if err := summary.WriteCSV(opts.OutSummary); err != nil {
		return nil, err
	}
	log.Info("weighted SLA summary written", zap.String("path", opts.OutSummary))
	return res, nil
}
