package geodata

import (
	"bytes"
	"encoding/binary"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// GeoPackage binary header flag bits (spec table 6): bit 0 selects the
// header byte order, bits 1-3 describe the envelope contents.
const (
	gpkgMagic0 = 0x47 // 'G'
	gpkgMagic1 = 0x50 // 'P'

	flagLittleEndian = 0x01
	flagEnvelopeXY   = 0x02 // envelope indicator 1 << 1
	envelopeMask     = 0x0e
)

// envelopeSizes maps the envelope contents indicator to its byte length.
var envelopeSizes = [...]int{0, 32, 48, 48, 64}

// EncodeGeometry wraps a geometry in a standard GeoPackage binary blob:
// "GP" magic, version 0, little-endian header with an XY envelope, the SRID,
// then ISO WKB. A nil geometry encodes as nil (stored as SQL NULL).
func EncodeGeometry(g geom.T, srid int) ([]byte, error) {
	if g == nil {
		return nil, nil
	}

	body, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geodata: encode wkb")
	}

	buf := bytes.NewBuffer(make([]byte, 0, 8+32+len(body)))
	buf.WriteByte(gpkgMagic0)
	buf.WriteByte(gpkgMagic1)
	buf.WriteByte(0) // version
	buf.WriteByte(flagLittleEndian | flagEnvelopeXY)

	if err := binary.Write(buf, binary.LittleEndian, int32(srid)); err != nil {
		return nil, eris.Wrap(err, "geodata: encode srid")
	}

	b := g.Bounds()
	for _, v := range []float64{b.Min(0), b.Max(0), b.Min(1), b.Max(1)} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, eris.Wrap(err, "geodata: encode envelope")
		}
	}

	buf.Write(body)
	return buf.Bytes(), nil
}

// DecodeGeometry parses a GeoPackage binary blob into a geometry and its
// SRID. A nil or empty blob yields a nil geometry.
func DecodeGeometry(blob []byte) (geom.T, int, error) {
	if len(blob) == 0 {
		return nil, 0, nil
	}
	if len(blob) < 8 {
		return nil, 0, eris.New("geodata: geometry blob shorter than header")
	}
	if blob[0] != gpkgMagic0 || blob[1] != gpkgMagic1 {
		return nil, 0, eris.New("geodata: missing GP magic in geometry blob")
	}

	flags := blob[3]
	order := binary.ByteOrder(binary.BigEndian)
	if flags&flagLittleEndian != 0 {
		order = binary.LittleEndian
	}

	envIndicator := int(flags&envelopeMask) >> 1
	if envIndicator >= len(envelopeSizes) {
		return nil, 0, eris.Errorf("geodata: invalid envelope indicator %d", envIndicator)
	}

	srid := int(int32(order.Uint32(blob[4:8])))

	offset := 8 + envelopeSizes[envIndicator]
	if len(blob) < offset {
		return nil, 0, eris.New("geodata: geometry blob truncated at envelope")
	}
	if len(blob) == offset {
		// Header-only blob: empty geometry.
		return nil, srid, nil
	}

	g, err := wkb.Unmarshal(blob[offset:])
	if err != nil {
		return nil, 0, eris.Wrap(err, "geodata: decode wkb")
	}
	return g, srid, nil
}

// typeName returns the GPKG geometry type name for a geometry.
func typeName(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "POINT"
	case *geom.LineString:
		return "LINESTRING"
	case *geom.Polygon:
		return "POLYGON"
	case *geom.MultiPoint:
		return "MULTIPOINT"
	case *geom.MultiLineString:
		return "MULTILINESTRING"
	case *geom.MultiPolygon:
		return "MULTIPOLYGON"
	default:
		return "GEOMETRY"
	}
}
