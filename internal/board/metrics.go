package board

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/report"
	"github.com/juanocv/magalu-cd-location/internal/stats"
)

// Hour-column detection per candidate. The OD stage writes
// dur_h_<origin label>; older hand-built feature tables used time_h_*.
var (
	recifeHours   = []string{`dur_h.*recife`, `time_h.*recife`}
	salvadorHours = []string{`dur_h.*salvador`, `time_h.*salvador`}
	weightCols    = []string{`^demand_weight$`, `^w_norm$`}
)

// Coverage thresholds in travel hours.
const (
	coverageSameDay = 12.0
	coverageNextDay = 24.0
)

// PercentileSet carries weighted travel-time percentiles in hours.
type PercentileSet struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
}

// SummaryMetrics condenses the per-municipality features into the
// figures quoted in the study text.
type SummaryMetrics struct {
	WeightedAvgTime struct {
		RecifeH   float64 `json:"recife_h"`
		SalvadorH float64 `json:"salvador_h"`
	} `json:"weighted_avg_time"`
	Percentiles struct {
		Recife   PercentileSet `json:"recife"`
		Salvador PercentileSet `json:"salvador"`
	} `json:"percentiles"`
	Coverage struct {
		RecLe12 float64 `json:"rec_le12"`
		SsaLe12 float64 `json:"ssa_le12"`
		RecLe24 float64 `json:"rec_le24"`
		SsaLe24 float64 `json:"ssa_le24"`
	} `json:"coverage"`
}

// Metrics computes demand-weighted travel statistics from a features
// CSV holding one row per municipality with travel hours per candidate
// and a demand weight column.
func Metrics(path string) (*SummaryMetrics, error) {
	t, err := fetcher.ReadTable(path)
	if err != nil {
		return nil, eris.Wrapf(err, "board: read features %s", path)
	}
	recIdx := t.DetectCol(recifeHours...)
	salIdx := t.DetectCol(salvadorHours...)
	wIdx := t.DetectCol(weightCols...)
	if recIdx < 0 || salIdx < 0 {
		return nil, eris.Errorf("board: %s has no travel-hour columns for both candidates", path)
	}
	if wIdx < 0 {
		return nil, eris.Errorf("board: %s has no demand weight column", path)
	}

	n := len(t.Rows)
	recH := make([]float64, n)
	salH := make([]float64, n)
	weights := make([]float64, n)
	for i := range t.Rows {
		recH[i] = parseFloat(t.Cell(i, recIdx))
		salH[i] = parseFloat(t.Cell(i, salIdx))
		weights[i] = parseFloat(t.Cell(i, wIdx))
	}

	m := &SummaryMetrics{}
	m.WeightedAvgTime.RecifeH = stats.WeightedMean(recH, weights)
	m.WeightedAvgTime.SalvadorH = stats.WeightedMean(salH, weights)

	recQ := stats.WeightedQuantiles(recH, weights, 0.5, 0.9)
	salQ := stats.WeightedQuantiles(salH, weights, 0.5, 0.9)
	m.Percentiles.Recife = PercentileSet{P50: recQ[0], P90: recQ[1]}
	m.Percentiles.Salvador = PercentileSet{P50: salQ[0], P90: salQ[1]}

	m.Coverage.RecLe12 = stats.CoverageShare(within(recH, coverageSameDay), weights)
	m.Coverage.SsaLe12 = stats.CoverageShare(within(salH, coverageSameDay), weights)
	m.Coverage.RecLe24 = stats.CoverageShare(within(recH, coverageNextDay), weights)
	m.Coverage.SsaLe24 = stats.CoverageShare(within(salH, coverageNextDay), weights)
	return m, nil
}

// within marks the rows reachable at or under limit hours. NaN hours
// count as not covered.
func within(hours []float64, limit float64) []bool {
	covered := make([]bool, len(hours))
	for i, h := range hours {
		covered[i] = h <= limit
	}
	return covered
}

// WriteMetrics writes the metrics as indented JSON, creating parent
// directories.
func WriteMetrics(path string, m *SummaryMetrics) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "board: encode metrics")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "board: create metrics dir for %s", path)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "board: write %s", path)
	}
	return nil
}

// renderCharts draws the two presentation charts under dir.
func renderCharts(dir string, m *SummaryMetrics) error {
	times := &report.BarChart{
		Title:  "Tempo médio ponderado por origem",
		YLabel: "Tempo de viagem (h)",
		Bars: []report.Bar{
			{Label: "Recife", Value: m.WeightedAvgTime.RecifeH},
			{Label: "Salvador", Value: m.WeightedAvgTime.SalvadorH},
		},
	}
	if err := report.RenderFile(filepath.Join(dir, "tempos_ponderados_por_origem.svg"), times); err != nil {
		return err
	}
	coverage := &report.BarChart{
		Title:  "Cobertura da demanda por SLA",
		YLabel: "Cobertura (fração da demanda)",
		Bars: []report.Bar{
			{Label: "Recife ≤12h", Value: m.Coverage.RecLe12},
			{Label: "Salvador ≤12h", Value: m.Coverage.SsaLe12},
			{Label: "Recife ≤24h", Value: m.Coverage.RecLe24},
			{Label: "Salvador ≤24h", Value: m.Coverage.SsaLe24},
		},
	}
	return report.RenderFile(filepath.Join(dir, "cobertura_demanda.svg"), coverage)
}
