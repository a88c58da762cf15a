// Package od builds the origin-destination travel-time tables of the study:
// the two candidate cities against the NE state capitals, and against the
// top demand-weighted municipalities with weighted SLA summaries. Both
// stages query an OSRM /table service and treat unreachable pairs as
// missing, never as zero.
package od

import (
	"math"
	"strconv"
	"strings"
)

// Origin is a travel-time source city.
type Origin struct {
	Name string
	Lat  float64
	Lon  float64
}

// DefaultOrigins returns the two candidate cities of the study.
func DefaultOrigins() []Origin {
	return []Origin{
		{Name: "Recife-PE", Lat: -8.0476, Lon: -34.8770},
		{Name: "Salvador-BA", Lat: -12.9714, Lon: -38.5014},
	}
}

// neCapitals lists the nine NE state capitals with approximate WGS84
// coordinates, in the order the study reports them.
var neCapitals = []Origin{
	{Name: "Salvador-BA", Lat: -12.9714, Lon: -38.5014},
	{Name: "Recife-PE", Lat: -8.0476, Lon: -34.8770},
	{Name: "Fortaleza-CE", Lat: -3.7319, Lon: -38.5267},
	{Name: "São Luís-MA", Lat: -2.5307, Lon: -44.3028},
	{Name: "Teresina-PI", Lat: -5.0919, Lon: -42.8034},
	{Name: "Natal-RN", Lat: -5.7945, Lon: -35.2110},
	{Name: "João Pessoa-PB", Lat: -7.1153, Lon: -34.8610},
	{Name: "Maceió-AL", Lat: -9.6499, Lon: -35.7089},
	{Name: "Aracaju-SE", Lat: -10.9472, Lon: -37.0731},
}

const secondsPerHour = 3600.0

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
