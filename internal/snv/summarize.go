package snv

import (
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/normalize"
)

// summaryColumns is the metric block shared by both group summaries.
var summaryColumns = []string{
	"km_total", "km_dup", "km_pav", "km_conc",
	"pct_dup", "pct_pav", "pct_conc", "n_trechos",
}

// pavKeywords mark a situacao text as paved pavement.
var pavKeywords = []string{"pav", "asf", "asfalto", "concreto", "tst", "revest"}

const topBRLimit = 20

// SummarizeOptions configures the coverage summary.
type SummarizeOptions struct {
	Input  string // consolidated or interim segment CSV
	OutDir string
}

// SummarizeResult reports the summary group counts.
type SummarizeResult struct {
	RowsIn     int64
	GroupsBRUF int64
	GroupsUF   int64
}

// Counters flattens the result for the run log.
func (r *SummarizeResult) Counters() map[string]int64 {
	return map[string]int64{
		"groups_br_uf": r.GroupsBRUF,
		"groups_uf":    r.GroupsUF,
	}
}

// summaryRow accumulates km-weighted flags for one group.
type summaryRow struct {
	kmTotal float64
	kmDup   float64
	kmPav   float64
	kmConc  float64
	n       int64
}

func (s *summaryRow) add(km float64, dup, pav, conc bool) {
	s.kmTotal += km
	if dup {
		s.kmDup += km
	}
	if pav {
		s.kmPav += km
	}
	if conc {
		s.kmConc += km
	}
	s.n++
}

func (s *summaryRow) cells() []string {
	return []string{
		formatFloat(s.kmTotal), formatFloat(s.kmDup),
		formatFloat(s.kmPav), formatFloat(s.kmConc),
		formatFloat(pctOf(s.kmDup, s.kmTotal)),
		formatFloat(pctOf(s.kmPav, s.kmTotal)),
		formatFloat(pctOf(s.kmConc, s.kmTotal)),
		strconv.FormatInt(s.n, 10),
	}
}

// Summarize aggregates the segment table into km-weighted duplication,
// pavement and concession coverage by BR within UF and by UF, plus the top
// highways by total extension.
func Summarize(opts SummarizeOptions) (*SummarizeResult, error) {
	log := zap.L().With(zap.String("component", "snv.summarize"))

	t, err := fetcher.ReadTable(opts.Input)
	if err != nil {
		return nil, err
	}
	for i, h := range t.Header {
		t.Header[i] = normalize.Header(h)
	}

	lenCol := firstColumn(t.Header, "extensao", "ext_km")
	if lenCol == "" {
		return nil, eris.Errorf("snv: %s has no length column (extensao or ext_km)", opts.Input)
	}
	ufIdx := t.Col("uf")
	if ufIdx < 0 {
		return nil, eris.Errorf("snv: %s has no uf column", opts.Input)
	}
	lenIdx := t.Col(lenCol)
	brIdx := t.Col("br_pad")
	if brIdx < 0 {
		brIdx = t.Col("br")
	}
	pistaIdx := t.Col("pista")
	descIdx := t.Col("trecho_desc")
	locIdx := t.Col("localidade")
	obrasIdx := t.Col("obras")
	situIdx := t.Col("situacao")
	concIdx := t.Col("concessao")

	byBRUF := map[[2]string]*summaryRow{}
	byUF := map[string]*summaryRow{}
	for i := range t.Rows {
		km := parseKm(t.Cell(i, lenIdx))
		if math.IsNaN(km) {
			km = 0
		}
		pista := strings.ToLower(t.Cell(i, pistaIdx))
		desc := strings.ToLower(t.Cell(i, descIdx) + " " + t.Cell(i, locIdx) + " " + t.Cell(i, obrasIdx))
		situ := t.Cell(i, situIdx)
		conc := strings.ToLower(t.Cell(i, concIdx))

		dup := strings.Contains(pista, "dupl") || strings.Contains(desc, "duplic")
		pav := strings.HasPrefix(strings.ToUpper(situ), "P") || containsAny(strings.ToLower(situ), pavKeywords)
		concFlag := strings.HasPrefix(conc, "s") || strings.Contains(conc, "conc")

		br := normalize.PadBR(t.Cell(i, brIdx))
		uf := normalize.UF(t.Cell(i, ufIdx))

		k := [2]string{br, uf}
		if byBRUF[k] == nil {
			byBRUF[k] = &summaryRow{}
		}
		byBRUF[k].add(km, dup, pav, concFlag)
		if byUF[uf] == nil {
			byUF[uf] = &summaryRow{}
		}
		byUF[uf].add(km, dup, pav, concFlag)
	}

	bruf := &fetcher.Table{Header: append([]string{"br_pad", "uf"}, summaryColumns...)}
	brufKeys := make([][2]string, 0, len(byBRUF))
	for k := range byBRUF {
		brufKeys = append(brufKeys, k)
	}
	sort.Slice(brufKeys, func(i, j int) bool {
		if brufKeys[i][0] != brufKeys[j][0] {
			return lessEmptyLast(brufKeys[i][0], brufKeys[j][0])
		}
		return lessEmptyLast(brufKeys[i][1], brufKeys[j][1])
	})
	for _, k := range brufKeys {
		bruf.Rows = append(bruf.Rows, append([]string{k[0], k[1]}, byBRUF[k].cells()...))
	}

	uft := &fetcher.Table{Header: append([]string{"uf"}, summaryColumns...)}
	ufKeys := make([]string, 0, len(byUF))
	for k := range byUF {
		ufKeys = append(ufKeys, k)
	}
	sort.Slice(ufKeys, func(i, j int) bool { return lessEmptyLast(ufKeys[i], ufKeys[j]) })
	for _, k := range ufKeys {
		uft.Rows = append(uft.Rows, append([]string{k}, byUF[k].cells()...))
	}

	totals := map[string]float64{}
	for k, row := range byBRUF {
		if k[0] != "" {
			totals[k[0]] += row.kmTotal
		}
	}
	brs := make([]string, 0, len(totals))
	for br := range totals {
		brs = append(brs, br)
	}
	sort.Slice(brs, func(i, j int) bool {
		if totals[brs[i]] != totals[brs[j]] {
			return totals[brs[i]] > totals[brs[j]]
		}
		return brs[i] < brs[j]
	})
	if len(brs) > topBRLimit {
		brs = brs[:topBRLimit]
	}
	top := &fetcher.Table{Header: []string{"br_pad", "km_total"}}
	for _, br := range brs {
		top.Rows = append(top.Rows, []string{br, formatFloat(totals[br])})
	}

	for _, out := range []struct {
		name  string
		table *fetcher.Table
	}{
		{"snv_summary_BR_UF.csv", bruf},
		{"snv_summary_UF.csv", uft},
		{"snv_top_brs_NE.csv", top},
	} {
		if err := out.table.WriteCSV(filepath.Join(opts.OutDir, out.name)); err != nil {
			return nil, err
		}
	}

	res := &SummarizeResult{
		RowsIn:     int64(len(t.Rows)),
		GroupsBRUF: int64(len(byBRUF)),
		GroupsUF:   int64(len(byUF)),
	}
	log.Info("summary written",
		zap.String("dir", opts.OutDir),
		zap.Int64("rows", res.RowsIn),
		zap.Int64("groups_br_uf", res.GroupsBRUF),
		zap.Int64("groups_uf", res.GroupsUF),
	)
	return res, nil
}

// pctOf returns the share part/total, 0 when total is not positive.
func pctOf(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total
}

// lessEmptyLast orders strings ascending with empties sorted to the end.
func lessEmptyLast(a, b string) bool {
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	return a < b
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
