package consumo

import (
	"context"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/normalize"
)

// scoreColumns is the fixed schema of the consumption score table.
var scoreColumns = []string{
	"code_muni", "nome_muni", "sigla", "uf",
	"pop_2021", "pib_pc_2021_brl", "renda_pc_uf_2024_nominal_brl",
	"adj_pibpc_vs_uf", "income_proxy_adj", "score_consumo", "demand_weight",
}

// The GDP-per-capita adjustment is bounded so a single outlier municipality
// cannot dominate its state, and the min-max denominator carries a small
// epsilon so a degenerate single-value region still scores.
const (
	adjFloor     = 0.5
	adjCeil      = 2.0
	scoreEpsilon = 1e-9
)

// ScoreOptions configures the demand score build.
type ScoreOptions struct {
	PIBCSV   string // municipal GDP table, one row per municipality
	PopCSV   string // municipal population table
	RendaCSV string // state nominal per-capita income table
	OutCSV   string

	// WithGeom additionally joins the scores onto municipality geometries.
	// A failure there is reported but does not fail the score build.
	WithGeom bool
	MuniGPKG string
	OutGPKG  string
}

// ScoreResult reports merge coverage for the score build.
type ScoreResult struct {
	Rows             int64
	PopFilled        int64
	RendaFilled      int64
	GeometryFeatures int64
}

// Counters flattens the result for the run log.
func (r *ScoreResult) Counters() map[string]int64 {
	return map[string]int64{
		"pop_filled":        r.PopFilled,
		"renda_filled":      r.RendaFilled,
		"geometry_features": r.GeometryFeatures,
	}
}

// muniScore accumulates one municipality through the merge and scoring
// steps, in output column order.
type muniScore struct {
	code     string
	nome     string
	sigla    string
	uf       string
	pop      float64
	pibPC    float64
	renda    float64
	adj      float64
	proxyAdj float64
	score    float64
	weight   float64
}

// Score merges the three demand inputs on the 7-digit IBGE code and the UF
// sigla, derives the adjusted income proxy per municipality and writes the
// score table. Population and income gaps stay NaN and propagate into empty
// score cells rather than zeros.
func Score(ctx context.Context, opts ScoreOptions) (*ScoreResult, error) {
	log := zap.L().With(zap.String("component", "consumo.score"))

	munis, err := readPIB(opts.PIBCSV)
	if err != nil {
		return nil, err
	}
	pop, err := readPopulation(opts.PopCSV)
	if err != nil {
		return nil, err
	}
	renda, err := readRenda(opts.RendaCSV)
	if err != nil {
		return nil, err
	}

	res := &ScoreResult{Rows: int64(len(munis))}
	for i := range munis {
		v, ok := pop[munis[i].code]
		if !ok {
			v = math.NaN()
		}
		munis[i].pop = v
		if !math.IsNaN(v) {
			res.PopFilled++
		}

		v, ok = renda[munis[i].sigla]
		if !ok {
			v = math.NaN()
		}
		munis[i].renda = v
		if !math.IsNaN(v) {
			res.RendaFilled++
		}
	}
	log.Info("demand inputs merged",
		zap.Int64("rows", res.Rows),
		zap.Int64("pop_filled", res.PopFilled),
		zap.Int64("renda_filled", res.RendaFilled))

	// GDP per capita relative to the state mean, clipped.
	sums := map[string]float64{}
	counts := map[string]int64{}
	for _, m := range munis {
		if m.sigla == "" || math.IsNaN(m.pibPC) {
			continue
		}
		sums[m.sigla] += m.pibPC
		counts[m.sigla]++
	}
	for i := range munis {
		if n := counts[munis[i].sigla]; n > 0 {
			avg := sums[munis[i].sigla] / float64(n)
			munis[i].adj = clip(munis[i].pibPC/avg, adjFloor, adjCeil)
		} else {
			munis[i].adj = math.NaN()
		}
	}

	// Income proxy, min-max score and region-normalized demand weight.
	minP, maxP := math.NaN(), math.NaN()
	var total float64
	for i := range munis {
		proxy := munis[i].pop * munis[i].renda * munis[i].adj
		munis[i].proxyAdj = proxy
		if math.IsNaN(proxy) {
			continue
		}
		if math.IsNaN(minP) || proxy < minP {
			minP = proxy
		}
		if math.IsNaN(maxP) || proxy > maxP {
			maxP = proxy
		}
		total += proxy
	}
	den := maxP - minP + scoreEpsilon
	for i := range munis {
		munis[i].score = (munis[i].proxyAdj - minP) / den
		if total > 0 {
			munis[i].weight = munis[i].proxyAdj / total
		} else {
			munis[i].weight = math.NaN()
		}
	}

	out := &fetcher.Table{Header: append([]string(nil), scoreColumns...)}
	for _, m := range munis {
		out.Rows = append(out.Rows, []string{
			m.code, m.nome, m.sigla, m.uf,
			formatFloat(m.pop), formatFloat(m.pibPC), formatFloat(m.renda),
			formatFloat(m.adj), formatFloat(m.proxyAdj),
			formatFloat(m.score), formatFloat(m.weight),
		})
	}
	if err := out.WriteCSV(opts.OutCSV); err != nil {
		return nil, err
	}
	log.Info("consumption score written",
		zap.String("path", opts.OutCSV), zap.Int64("rows", res.Rows))

	if opts.WithGeom {
		jr, err := JoinGeoms(ctx, JoinGeomsOptions{
			MuniGPKG: opts.MuniGPKG,
			ScoreCSV: opts.OutCSV,
			OutGPKG:  opts.OutGPKG,
		})
		if err != nil {
			log.Warn("thematic layer skipped", zap.Error(err))
		} else {
			res.GeometryFeatures = jr.Features
		}
	}
	return res, nil
}

// readPIB loads the municipal GDP table. The code, sigla and GDP per capita
// columns are required under their canonical names; names come along when
// present.
func readPIB(path string) ([]muniScore, error) {
	t, err := fetcher.ReadTable(path)
	if err != nil {
		return nil, err
	}
	codeIdx := t.Col("code_muni")
	if codeIdx < 0 {
		return nil, eris.Errorf("consumo: %s must have a code_muni column", path)
	}
	siglaIdx := t.Col("sigla")
	if siglaIdx < 0 {
		return nil, eris.Errorf("consumo: %s must have a sigla column", path)
	}
	pibIdx := t.Col("pib_pc_2021_brl")
	if pibIdx < 0 {
		return nil, eris.Errorf("consumo: %s must have a pib_pc_2021_brl column", path)
	}
	nomeIdx := t.Col("nome_muni")
	ufIdx := t.Col("uf")

	munis := make([]muniScore, 0, len(t.Rows))
	for i := range t.Rows {
		munis = append(munis, muniScore{
			code:  normalize.DigitsZFill(t.Cell(i, codeIdx), muniCodeWidth),
			nome:  strings.TrimSpace(t.Cell(i, nomeIdx)),
			sigla: strings.ToUpper(strings.TrimSpace(t.Cell(i, siglaIdx))),
			uf:    strings.TrimSpace(t.Cell(i, ufIdx)),
			pibPC: normalize.ParseNumber(t.Cell(i, pibIdx)),
		})
	}
	return munis, nil
}

// readPopulation loads population keyed by the 7-digit code. SIDRA exports
// ship the UF prefix and the 5-digit municipal part in separate columns, so
// the code is reassembled when a UF code column exists.
func readPopulation(path string) (map[string]float64, error) {
	t, err := fetcher.ReadTable(path)
	if err != nil {
		return nil, err
	}
	codeIdx := t.DetectCol(muniCodePatterns...)
	popIdx := t.DetectCol(popPatterns...)
	if codeIdx < 0 || popIdx < 0 {
		return nil, eris.Errorf("consumo: could not locate the municipality code and population columns in %s", path)
	}
	ufIdx := t.DetectCol(ufCodePatterns...)

	out := make(map[string]float64, len(t.Rows))
	for i := range t.Rows {
		code := normalize.DigitsZFill(t.Cell(i, codeIdx), muniPartWidth)
		if code == "" {
			continue
		}
		if ufIdx >= 0 {
			code = normalize.DigitsZFill(t.Cell(i, ufIdx), ufCodeWidth) + code
		}
		if _, ok := out[code]; !ok {
			out[code] = normalize.ParseNumber(t.Cell(i, popIdx))
		}
	}
	return out, nil
}

// readRenda loads state nominal per-capita income keyed by upper-cased sigla.
func readRenda(path string) (map[string]float64, error) {
	t, err := fetcher.ReadTable(path)
	if err != nil {
		return nil, err
	}
	siglaIdx := t.DetectCol(siglaPatterns...)
	rendaIdx := t.DetectCol(rendaPatterns...)
	if siglaIdx < 0 || rendaIdx < 0 {
		return nil, eris.Errorf("consumo: could not locate the sigla and income columns in %s", path)
	}

	out := make(map[string]float64, len(t.Rows))
	for i := range t.Rows {
		sigla := strings.ToUpper(strings.TrimSpace(t.Cell(i, siglaIdx)))
		if sigla == "" {
			continue
		}
		if _, ok := out[sigla]; !ok {
			out[sigla] = normalize.ParseNumber(t.Cell(i, rendaIdx))
		}
	}
	return out, nil
}
