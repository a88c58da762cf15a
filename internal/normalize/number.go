package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonNumeric = regexp.MustCompile(`[^\d,.-]`)
	digitRun   = regexp.MustCompile(`\d{2,3}`)
	nonDigit   = regexp.MustCompile(`\D`)
)

// ParseNumber parses a pt-BR formatted numeric field ("1.234,56", "R$ 1.500,00",
// "12,5 km"). Units and currency symbols are dropped, "." is treated as the
// thousands separator and "," as the decimal mark. Unparseable input yields NaN.
func ParseNumber(s string) float64 {
	t := strings.TrimSpace(strings.ReplaceAll(s, " ", " "))
	t = nonNumeric.ReplaceAllString(t, "")
	t = strings.ReplaceAll(t, ".", "")
	t = strings.ReplaceAll(t, ",", ".")
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// BRNumber extracts the first 2-3 digit run from a highway reference
// ("BR-101", "Rodovia 230") or "" when none exists.
func BRNumber(s string) string {
	return digitRun.FindString(s)
}

// PadBR formats a highway reference as "BR-<num>", or "" when no 2-3 digit
// run is present.
func PadBR(s string) string {
	num := BRNumber(s)
	if num == "" {
		return ""
	}
	return "BR-" + num
}

// DigitsZFill keeps only the digits of s and left-pads them with zeros to
// width (IBGE code convention). A digitless input yields "".
func DigitsZFill(s string, width int) string {
	d := nonDigit.ReplaceAllString(s, "")
	if d == "" {
		return ""
	}
	for len(d) < width {
		d = "0" + d
	}
	return d
}
