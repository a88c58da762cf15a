// Package consumo builds the municipal consumption demand layer for the
// Northeast: municipal GDP per capita, population and state nominal income
// are merged into an income proxy per municipality, min-max scaled into a
// score and normalized into a demand weight that sums to 1 across the
// region. The score table can be joined back onto IBGE municipality
// geometries as a thematic layer and sampled into demand-ranked centroids
// for travel-time queries.
package consumo

import (
	"math"
	"strconv"
	"strings"
)

// Column detection patterns for the demand inputs. IBGE and SIDRA exports
// shuffle header spellings between vintages, so each concept carries a
// preference-ordered list: exact names first, looser matches after.
var (
	muniCodePatterns = []string{`^code_muni$`, `c[oó]d.*mun`}
	ufCodePatterns   = []string{`^code_uf$`, `c[oó]d.*uf`}
	popPatterns      = []string{`pop.*2021`, `popula`, `habit`}
	siglaPatterns    = []string{`^sigla$`, `\buf\b.*sigla`, `sigla`}
	rendaPatterns    = []string{`renda.*2024`, `per.?capita`, `nominal`}
)

// IBGE municipality codes are 7 digits: a 2-digit UF prefix plus a 5-digit
// municipal sequence. Population exports often ship the two parts split.
const (
	muniCodeWidth = 7
	ufCodeWidth   = 2
	muniPartWidth = 5
)

// thematicLayer names the GPKG layer carrying scores joined to geometries.
const thematicLayer = "consumo_ne"

// clip bounds v to [lo, hi], passing NaN through.
func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
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
