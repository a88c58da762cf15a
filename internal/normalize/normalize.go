// Package normalize canonicalizes the free-text fields that Brazilian
// government tables disagree on: state references, highway numbers,
// pt-BR formatted numerics, IBGE codes, and column headers.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	multiSpace     = regexp.MustCompile(`\s+`)
)

// StripAccents removes combining marks ("Paraíba" -> "Paraiba").
// On a malformed input the original string is returned unchanged.
func StripAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

// CollapseSpaces trims and folds whitespace runs into single spaces.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}

// Header canonicalizes a column header: trimmed, lowercased, whitespace
// runs replaced by underscores.
func Header(s string) string {
	return multiSpace.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
}

// Clean trims surrounding whitespace. Empty input stays empty.
func Clean(s string) string {
	return strings.TrimSpace(s)
}
