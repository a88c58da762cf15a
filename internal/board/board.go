// Package board assembles the decision artifacts of the study: the
// Recife vs Salvador comparison board built from the per-UF highway
// rollup, the SLA annex rows taken from the weighted travel-time
// summary, and the optional summary metrics with their charts.
package board

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/normalize"
)

// boardColumns is the fixed schema of the comparison board.
var boardColumns = []string{"indicador", "recife", "salvador"}

// candidates fixes the board's column order and the keys used to match
// influence sets and SLA summary rows.
var candidates = []string{"recife", "salvador"}

// summaryColumns are required in the per-UF rollup input.
var summaryColumns = []string{"uf", "km_total", "pct_dup", "pct_pav", "pct_conc"}

// annexRows copy SLA summary cells onto the board verbatim, one row per
// statistic.
var annexRows = []struct {
	label  string
	column string
}{
	{"SLA ponderado (h)", "tempo_medio_ponderado_h"},
	{"SLA p50 (h)", "p50_h"},
	{"SLA p80 (h)", "p80_h"},
	{"SLA p90 (h)", "p90_h"},
}

// DefaultInfluence maps each candidate to the states its distribution
// center would primarily serve. Alagoas sits in both footprints.
func DefaultInfluence() map[string][]string {
	return map[string][]string{
		"recife":   {"PE", "PB", "AL"},
		"salvador": {"BA", "SE", "AL"},
	}
}

// Options configures Build.
type Options struct {
	SummaryUF  string // per-UF rollup CSV (uf, km_total, pct_*)
	SLASummary string // optional SLA summary CSV for the annex rows
	OutCSV     string

	// Influence lists the UFs aggregated per candidate. Defaults to
	// DefaultInfluence when nil.
	Influence map[string][]string

	// Optional summary metrics over a per-municipality features CSV.
	ODCSV       string
	MetricsJSON string
	ChartsDir   string
}

// Result reports what Build produced.
type Result struct {
	Indicators int64
	SLAAnnex   bool
	Metrics    *SummaryMetrics
}

func (r *Result) Counters() map[string]int64 {
	c := map[string]int64{
		"indicators": r.Indicators,
		"sla_annex":  0,
		"metrics":    0,
	}
	if r.SLAAnnex {
		c["sla_annex"] = 1
	}
	if r.Metrics != nil {
		c["metrics"] = 1
	}
	return c
}

// ufRow holds one state's rollup figures. Percentages are fractions.
type ufRow struct {
	km   float64
	dup  float64
	pav  float64
	conc float64
}

// Build writes the comparison board. Per candidate the influence states
// are aggregated as a plain km_total sum plus km-weighted averages of
// the percentage columns, where zero-km states carry no weight. The SLA
// annex and the metrics supplement degrade to logged notices, the board
// itself does not.
func Build(opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "board.build"))
	if opts.Influence == nil {
		opts.Influence = DefaultInfluence()
	}

	t, err := fetcher.ReadTable(opts.SummaryUF)
	if err != nil {
		return nil, eris.Wrapf(err, "board: read UF summary %s", opts.SummaryUF)
	}
	var missing []string
	for _, name := range summaryColumns {
		if t.Col(name) < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("board: %s is missing columns: %s", opts.SummaryUF, strings.Join(missing, ", "))
	}

	ufIdx := t.Col("uf")
	kmIdx := t.Col("km_total")
	dupIdx := t.Col("pct_dup")
	pavIdx := t.Col("pct_pav")
	concIdx := t.Col("pct_conc")

	byUF := make(map[string]ufRow, len(t.Rows))
	for i := range t.Rows {
		uf := normalize.UF(t.Cell(i, ufIdx))
		if uf == "" {
			continue
		}
		if _, ok := byUF[uf]; ok {
			continue
		}
		byUF[uf] = ufRow{
			km:   parseFloat(t.Cell(i, kmIdx)),
			dup:  parseFloat(t.Cell(i, dupIdx)),
			pav:  parseFloat(t.Cell(i, pavIdx)),
			conc: parseFloat(t.Cell(i, concIdx)),
		}
	}

	recAgg := aggregate(byUF, opts.Influence[candidates[0]])
	salAgg := aggregate(byUF, opts.Influence[candidates[1]])

	out := &fetcher.Table{Header: append([]string(nil), boardColumns...)}
	indicators := []struct {
		label    string
		rec, sal float64
	}{
		{"km_total (influência)", recAgg.km, salAgg.km},
		{"% duplicada (média ponderada km)", recAgg.dup, salAgg.dup},
		{"% pavimentada (média ponderada km)", recAgg.pav, salAgg.pav},
		{"% em concessão (média ponderada km)", recAgg.conc, salAgg.conc},
	}
	for _, ind := range indicators {
		out.Rows = append(out.Rows, []string{ind.label, formatFloat(ind.rec), formatFloat(ind.sal)})
	}

	res := &Result{}
	if opts.SLASummary != "" {
		res.SLAAnnex = appendSLAAnnex(out, opts.SLASummary, log)
	}
	res.Indicators = int64(len(out.Rows))

	if err := out.WriteCSV(opts.OutCSV); err != nil {
		return nil, err
	}
	log.Info("comparison board written",
		zap.String("out", opts.OutCSV),
		zap.Int64("indicators", res.Indicators),
		zap.Bool("sla_annex", res.SLAAnnex))

	if opts.ODCSV != "" && (opts.MetricsJSON != "" || opts.ChartsDir != "") {
		m, err := Metrics(opts.ODCSV)
		if err != nil {
			log.Warn("summary metrics skipped", zap.String("od", opts.ODCSV), zap.Error(err))
			return res, nil
		}
		res.Metrics = m
		if opts.MetricsJSON != "" {
			if err := WriteMetrics(opts.MetricsJSON, m); err != nil {
				log.Warn("metrics JSON skipped", zap.String("out", opts.MetricsJSON), zap.Error(err))
			} else {
				log.Info("summary metrics written", zap.String("out", opts.MetricsJSON))
			}
		}
		if opts.ChartsDir != "" {
			if err := renderCharts(opts.ChartsDir, m); err != nil {
				log.Warn("charts skipped", zap.String("dir", opts.ChartsDir), zap.Error(err))
			} else {
				log.Info("charts written", zap.String("dir", opts.ChartsDir))
			}
		}
	}
	return res, nil
}

// aggregate rolls the influence states up. km_total sums every non-NaN
// value; the percentage averages weight by km_total with zero-km states
// excluded, and the weight total does not shrink when a percentage cell
// is NaN. An empty set yields NaN averages.
func aggregate(byUF map[string]ufRow, ufs []string) ufRow {
	var agg ufRow
	var den, numDup, numPav, numConc float64
	for _, uf := range ufs {
		row, ok := byUF[uf]
		if !ok {
			continue
		}
		if !math.IsNaN(row.km) {
			agg.km += row.km
		}
		if math.IsNaN(row.km) || row.km == 0 {
			continue
		}
		den += row.km
		if !math.IsNaN(row.dup) {
			numDup += row.dup * row.km
		}
		if !math.IsNaN(row.pav) {
			numPav += row.pav * row.km
		}
		if !math.IsNaN(row.conc) {
			numConc += row.conc * row.km
		}
	}
	agg.dup = numDup / den
	agg.pav = numPav / den
	agg.conc = numConc / den
	return agg
}

// appendSLAAnnex copies the per-origin SLA statistics onto the board.
// Candidates are matched by substring against the lowercased origem
// column, so "Recife-PE" lands in the recife column. Reports whether
// any rows were appended.
func appendSLAAnnex(out *fetcher.Table, path string, log *zap.Logger) bool {
	t, err := fetcher.ReadTable(path)
	if err != nil {
		log.Warn("SLA annex skipped", zap.String("summary", path), zap.Error(err))
		return false
	}
	origemIdx := t.Col("origem")
	if origemIdx < 0 || t.Col(annexRows[0].column) < 0 {
		log.Warn("SLA annex skipped",
			zap.String("summary", path),
			zap.String("reason", "unexpected columns"))
		return false
	}

	rowFor := func(key string) int {
		for i := range t.Rows {
			if strings.Contains(strings.ToLower(t.Cell(i, origemIdx)), key) {
				return i
			}
		}
		return -1
	}
	recRow := rowFor(candidates[0])
	salRow := rowFor(candidates[1])

	for _, r := range annexRows {
		col := t.Col(r.column)
		if col < 0 {
			continue
		}
		out.Rows = append(out.Rows, []string{r.label, t.Cell(recRow, col), t.Cell(salRow, col)})
	}
	return true
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
