package snv

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
)

// ColumnMap forces source headers for interim fields, overriding regex
// detection. Keys are interim field names, values exact source headers.
type ColumnMap map[string]string

// interimFields lists the detectable interim fields in detection order.
var interimFields = []string{
	"id_trecho", "br", "uf", "trecho_desc", "localidade",
	"km_ini", "km_fim", "ext_km", "situacao", "classe", "sentido",
	"jurisdicao", "concessao",
}

// columnPatterns holds the header regexes per interim field, tried in
// priority order over the raw source headers, case-insensitively. DNIT
// republishes the SNV table with shifting header spellings, so detection
// has to be loose.
var columnPatterns = map[string][]string{
	"id_trecho":   {`id.*trecho|identificador|cod`},
	"br":          {`\bbr\b`, `\brodov`},
	"uf":          {`^uf$`, `\buf\b`},
	"trecho_desc": {`trecho|segmento|descri`},
	"localidade":  {`unidade|municip|localidade|cidade`},
	"km_ini":      {`km.*ini|ini.*km|km[_ ]?inic`},
	"km_fim":      {`km.*fim|fim.*km|km[_ ]?final`},
	"ext_km":      {`extens|compr|ext_km`},
	"situacao":    {`situ|condic|pav|revest|superficie`},
	"classe":      {`classe|classif`},
	"sentido":     {`sentid`},
	"jurisdicao":  {`jurisd|administ`},
	"concessao":   {`concess|conced`},
}

// LoadColumnMap reads a YAML override file mapping interim fields to source
// headers. An empty path yields a nil map.
func LoadColumnMap(path string) (ColumnMap, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "snv: read column map %s", path)
	}

	var m ColumnMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "snv: parse column map %s", path)
	}

	known := make(map[string]bool, len(interimFields))
	for _, f := range interimFields {
		known[f] = true
	}
	var bad []string
	for k := range m {
		if !known[k] {
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, eris.Errorf("snv: column map %s names unknown fields: %s", path, strings.Join(bad, ", "))
	}
	return m, nil
}

// DetectColumns resolves each interim field to a source column index: the
// override first (it must name an existing header), then the regex cascade.
// Unresolved fields map to -1.
func DetectColumns(t *fetcher.Table, override ColumnMap) (map[string]int, error) {
	out := make(map[string]int, len(interimFields))
	for _, field := range interimFields {
		if src, ok := override[field]; ok && src != "" {
			idx := t.Col(src)
			if idx < 0 {
				return nil, eris.Errorf("snv: column map points %s at %q, which is not a column of the input", field, src)
			}
			out[field] = idx
			continue
		}
		out[field] = t.DetectCol(columnPatterns[field]...)
	}
	return out, nil
}
