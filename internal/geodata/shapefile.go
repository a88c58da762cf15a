package geodata

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/normalize"
)

// ReadShapefile loads an ESRI shapefile into a Layer. Attribute names are
// normalized to snake_case, DBF padding is trimmed and empty values become
// nulls. Shapefiles carry no CRS in-band, so the caller supplies the SRID.
func ReadShapefile(path string, srid int) (*Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	cols := make([]string, 0, len(fields))
	seen := make(map[string]int, len(fields))
	for _, f := range fields {
		name := normalize.Header(strings.TrimRight(f.String(), "\x00"))
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name]++
		cols = append(cols, name)
	}

	layer := &Layer{
		Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Columns: cols,
		GeomCol: "geom",
		SRID:    srid,
	}

	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		attrs := make(map[string]any, len(cols))
		for i, col := range cols {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val == "" {
				attrs[col] = nil
			} else {
				attrs[col] = val
			}
		}

		g := shapeToGeom(shape, srid)
		if g == nil {
			skipped++
		} else if layer.GeomType == "" {
			layer.GeomType = typeName(g)
		}

		layer.Features = append(layer.Features, Feature{Attrs: attrs, Geom: g})
	}

	if skipped > 0 {
		zap.L().Debug("geodata: shapefile records without usable geometry",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return layer, nil
}

// shapeToGeom converts a go-shp shape to XY go-geom geometry. Z and M
// measures are discarded; unsupported shape classes map to nil.
func shapeToGeom(shape shp.Shape, srid int) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(srid)
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(srid)
	case *shp.PointM:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(srid)
	case *shp.PolyLine:
		return partsToMultiLineString(s.Parts, s.Points, srid)
	case *shp.PolyLineZ:
		return partsToMultiLineString(s.Parts, s.Points, srid)
	case *shp.PolyLineM:
		return partsToMultiLineString(s.Parts, s.Points, srid)
	case *shp.Polygon:
		return partsToMultiPolygon(s.Parts, s.Points, srid)
	case *shp.PolygonZ:
		return partsToMultiPolygon(s.Parts, s.Points, srid)
	case *shp.PolygonM:
		return partsToMultiPolygon(s.Parts, s.Points, srid)
	default:
		return nil
	}
}

func partsToMultiLineString(parts []int32, points []shp.Point, srid int) geom.T {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(srid)
	for i := range parts {
		flat := partFlatCoords(parts, points, i)
		if len(flat) < 4 {
			continue
		}
		ls := geom.NewLineStringFlat(geom.XY, flat)
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("geodata: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

func partsToMultiPolygon(parts []int32, points []shp.Point, srid int) geom.T {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)
	for i := range parts {
		flat := partFlatCoords(parts, points, i)
		if len(flat) < 8 {
			continue
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("geodata: skipping malformed polygon ring", zap.Int("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geodata: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// partFlatCoords extracts part i from a shapefile part index as flat XY pairs.
func partFlatCoords(parts []int32, points []shp.Point, i int) []float64 {
	start := parts[i]
	end := int32(len(points))
	if i+1 < len(parts) {
		end = parts[i+1]
	}
	if start < 0 || end > int32(len(points)) || start >= end {
		return nil
	}

	flat := make([]float64, 0, (end-start)*2)
	for j := start; j < end; j++ {
		flat = append(flat, points[j].X, points[j].Y)
	}
	return flat
}
