// Package geodata reads and writes the pipeline's geospatial containers:
// GeoPackage layers (SQLite + standard GeoPackage binary geometry blobs)
// and ESRI shapefiles. Layers carry attribute rows plus an optional go-geom
// geometry per feature.
package geodata

import (
	"math"
	"strconv"

	"github.com/twpayne/go-geom"
)

// DefaultSRID is SIRGAS 2000 geographic, the CRS of the DNIT and IBGE
// sources this pipeline consumes.
const DefaultSRID = 4674

// Feature is one row of a layer: attribute values keyed by column name and
// an optional geometry. Attribute values are nil, string, int64 or float64,
// matching SQLite's natural types.
type Feature struct {
	Attrs map[string]any
	Geom  geom.T
}

// Layer is an ordered collection of features sharing a column set.
type Layer struct {
	Name     string
	Columns  []string // attribute order; the geometry column is not listed
	GeomCol  string   // "" for attribute-only layers
	GeomType string   // GPKG type name (POINT, MULTILINESTRING, ...)
	SRID     int
	Features []Feature
}

// HasColumn reports whether the layer carries the named attribute column.
func (l *Layer) HasColumn(name string) bool {
	for _, c := range l.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Str returns the attribute as a string, "" when absent or null.
func (f *Feature) Str(col string) string {
	switch v := f.Attrs[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return ""
	}
}

// Float returns the attribute as a float64, NaN when absent, null or
// unparseable.
func (f *Feature) Float(col string) float64 {
	switch v := f.Attrs[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return math.NaN()
		}
		return parsed
	case []byte:
		parsed, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return math.NaN()
		}
		return parsed
	default:
		return math.NaN()
	}
}
