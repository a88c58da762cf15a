package normalize

import (
	"regexp"
	"strings"
)

// NortheastUFs is the study region: the nine northeastern states.
var NortheastUFs = []string{"AL", "BA", "CE", "MA", "PB", "PE", "PI", "RN", "SE"}

var northeastSet = func() map[string]bool {
	m := make(map[string]bool, len(NortheastUFs))
	for _, uf := range NortheastUFs {
		m[uf] = true
	}
	return m
}()

// ufNames maps accent-stripped uppercase forms (sigla or full name) of the
// northeastern states to their two-letter code.
var ufNames = map[string]string{
	"AL": "AL", "ALAGOAS": "AL",
	"BA": "BA", "BAHIA": "BA",
	"CE": "CE", "CEARA": "CE",
	"MA": "MA", "MARANHAO": "MA",
	"PB": "PB", "PARAIBA": "PB",
	"PE": "PE", "PERNAMBUCO": "PE",
	"PI": "PI", "PIAUI": "PI",
	"RN": "RN", "RIO GRANDE DO NORTE": "RN",
	"SE": "SE", "SERGIPE": "SE",
}

var (
	parenSigla = regexp.MustCompile(`\((AM|PA|AC|AP|RO|RR|TO|MA|PI|CE|RN|PB|PE|AL|SE|BA|MG|ES|RJ|SP|PR|SC|RS|MT|MS|GO|DF)\)`)
	bareSigla  = regexp.MustCompile(`^[A-Z]{2}$`)
)

// UF canonicalizes any state reference to a two-letter code: siglas and full
// northeastern state names map directly, an "ESTADO:" prefix is stripped, a
// parenthetical sigla like "Bahia (BA)" is extracted, and a bare two-letter
// token passes through. Anything else (including "Brasil") yields "".
func UF(s string) string {
	up := CollapseSpaces(StripAccents(strings.ToUpper(strings.TrimSpace(s))))
	if up == "" {
		return ""
	}
	if sig, ok := ufNames[up]; ok {
		return sig
	}
	stripped := strings.TrimSpace(strings.ReplaceAll(up, "ESTADO:", ""))
	if sig, ok := ufNames[stripped]; ok {
		return sig
	}
	if m := parenSigla.FindStringSubmatch(up); m != nil {
		return m[1]
	}
	if bareSigla.MatchString(up) {
		return up
	}
	return ""
}

// Northeast reports whether uf is one of the nine northeastern states.
func Northeast(uf string) bool {
	return northeastSet[uf]
}
