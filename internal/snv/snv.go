// Package snv implements the DNIT highway-network stages of the pipeline:
// normalizing the raw SNV table into the interim segment CSV, inspecting
// and applying GeoPackage revision diffs, joining segments to route
// shapefiles, and aggregating coverage summaries for the case board.
package snv

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/geodata"
)

// InterimColumns is the column order of the interim segment CSV. Downstream
// stages and the published case outputs rely on this exact order.
var InterimColumns = []string{
	"id_trecho", "br", "br_pad", "uf", "trecho_desc", "localidade",
	"km_ini", "km_fim", "ext_km", "situacao", "classe", "sentido",
	"jurisdicao", "concessao", "data_ref", "chave_trecho_hint",
}

// Trecho is one normalized highway segment of the interim dataset.
type Trecho struct {
	IDTrecho   string
	BR         string
	BRPad      string
	UF         string
	TrechoDesc string
	Localidade string
	KmIni      float64
	KmFim      float64
	ExtKm      float64
	Situacao   string
	Classe     string
	Sentido    string
	Jurisdicao string
	Concessao  string
	DataRef    string
	ChaveHint  string
}

// ChaveTrechoHint builds the composite segment key br_pad|uf|floor(km_ini).
// The kilometer part is empty when the start kilometer is unknown.
func ChaveTrechoHint(brPad, uf string, kmIni float64) string {
	km := ""
	if !math.IsNaN(kmIni) {
		km = strconv.Itoa(int(math.Floor(kmIni)))
	}
	return brPad + "|" + uf + "|" + km
}

func (t *Trecho) row() []string {
	return []string{
		t.IDTrecho, t.BR, t.BRPad, t.UF, t.TrechoDesc, t.Localidade,
		formatFloat(t.KmIni), formatFloat(t.KmFim), formatFloat(t.ExtKm),
		t.Situacao, t.Classe, t.Sentido, t.Jurisdicao, t.Concessao,
		t.DataRef, t.ChaveHint,
	}
}

// taggedFeature carries a feature plus the source layer it came from.
type taggedFeature struct {
	layer string
	feat  geodata.Feature
}

// parseFloat parses a plain decimal field ("103.25"), NaN when empty or
// malformed. Interim CSVs are written with dot decimals, so the pt-BR
// parser (which treats the dot as a thousands separator) must not be
// applied to them.
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// formatFloat renders a float for CSV output, "" for NaN.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// firstColumn returns the first candidate name present in cols, "" when
// none is.
func firstColumn(cols []string, candidates ...string) string {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	for _, cand := range candidates {
		if set[cand] {
			return cand
		}
	}
	return ""
}

// matchColumn returns the first column matching any of the case-insensitive
// regexes, tried in priority order.
func matchColumn(cols []string, patterns ...string) string {
	for _, pat := range patterns {
		rgx, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			continue
		}
		for _, c := range cols {
			if rgx.MatchString(c) {
				return c
			}
		}
	}
	return ""
}

// ensureColumn returns the index of the named column, appending it (and
// padding every row) when absent.
func ensureColumn(t *fetcher.Table, name string) int {
	if idx := t.Col(name); idx >= 0 {
		return idx
	}
	t.Header = append(t.Header, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return len(t.Header) - 1
}

// padRows right-pads ragged rows with empty cells so columns can be
// addressed by index.
func padRows(t *fetcher.Table) {
	for i := range t.Rows {
		for len(t.Rows[i]) < len(t.Header) {
			t.Rows[i] = append(t.Rows[i], "")
		}
	}
}

// featureRow flattens a feature's attributes to CSV cells over cols.
func featureRow(f *geodata.Feature, cols []string) []string {
	row := make([]string, len(cols))
	for j, c := range cols {
		row[j] = f.Str(c)
	}
	return row
}

// layerTable flattens features to a CSV table over the given columns.
func layerTable(cols []string, feats []geodata.Feature) *fetcher.Table {
	t := &fetcher.Table{Header: cols}
	for i := range feats {
		t.Rows = append(t.Rows, featureRow(&feats[i], cols))
	}
	return t
}
