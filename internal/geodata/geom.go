package geodata

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"
)

const earthRadiusKm = 6371.0

// GreatCircleKm returns the great-circle distance in kilometers between two
// lat/lon coordinates in degrees.
func GreatCircleKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * earthRadiusKm
}

// Centroid computes the planar centroid of a geometry in coordinate units.
// Polygons use the area-weighted centroid (holes with opposite winding
// subtract), lines use the length-weighted midpoint average and points the
// plain mean. Returns ok=false for nil or empty geometries.
func Centroid(g geom.T) (x, y float64, ok bool) {
	switch t := g.(type) {
	case nil:
		return math.NaN(), math.NaN(), false
	case *geom.Point:
		if len(t.FlatCoords()) < 2 {
			return math.NaN(), math.NaN(), false
		}
		return t.X(), t.Y(), true
	case *geom.MultiPoint:
		return meanOfFlat(t.FlatCoords(), t.Stride())
	case *geom.LineString:
		return lineCentroid([][]float64{t.FlatCoords()}, t.Stride())
	case *geom.MultiLineString:
		lines := make([][]float64, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			lines = append(lines, t.LineString(i).FlatCoords())
		}
		return lineCentroid(lines, t.Stride())
	case *geom.Polygon:
		return polygonCentroid(polygonRings(t), t.Stride(), t.FlatCoords())
	case *geom.MultiPolygon:
		var rings [][]float64
		for i := 0; i < t.NumPolygons(); i++ {
			rings = append(rings, polygonRings(t.Polygon(i))...)
		}
		return polygonCentroid(rings, t.Stride(), t.FlatCoords())
	default:
		return math.NaN(), math.NaN(), false
	}
}

func polygonRings(p *geom.Polygon) [][]float64 {
	rings := make([][]float64, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		rings = append(rings, p.LinearRing(i).FlatCoords())
	}
	return rings
}

// polygonCentroid applies the shoelace centroid over all rings. Signed ring
// areas make oppositely wound holes cancel out. Near-zero total area falls
// back to the vertex mean.
func polygonCentroid(rings [][]float64, stride int, allFlat []float64) (float64, float64, bool) {
	var area, cx, cy float64
	for _, flat := range rings {
		n := len(flat) / stride
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			x0, y0 := flat[i*stride], flat[i*stride+1]
			x1, y1 := flat[j*stride], flat[j*stride+1]
			cross := x0*y1 - x1*y0
			area += cross
			cx += (x0 + x1) * cross
			cy += (y0 + y1) * cross
		}
	}
	if math.Abs(area) < 1e-12 {
		return meanOfFlat(allFlat, stride)
	}
	return cx / (3 * area), cy / (3 * area), true
}

func lineCentroid(lines [][]float64, stride int) (float64, float64, bool) {
	var total, cx, cy float64
	for _, flat := range lines {
		n := len(flat) / stride
		for i := 0; i+1 < n; i++ {
			x0, y0 := flat[i*stride], flat[i*stride+1]
			x1, y1 := flat[(i+1)*stride], flat[(i+1)*stride+1]
			w := math.Hypot(x1-x0, y1-y0)
			total += w
			cx += w * (x0 + x1) / 2
			cy += w * (y0 + y1) / 2
		}
	}
	if total == 0 {
		var all []float64
		for _, flat := range lines {
			all = append(all, flat...)
		}
		return meanOfFlat(all, stride)
	}
	return cx / total, cy / total, true
}

func meanOfFlat(flat []float64, stride int) (float64, float64, bool) {
	n := len(flat) / stride
	if n == 0 {
		return math.NaN(), math.NaN(), false
	}
	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += flat[i*stride]
		sy += flat[i*stride+1]
	}
	return sx / float64(n), sy / float64(n), true
}
