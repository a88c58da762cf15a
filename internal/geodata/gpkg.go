package geodata

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// GPKG is an open GeoPackage container.
type GPKG struct {
	db   *sql.DB
	path string
}

// OpenGPKG opens an existing GeoPackage for reading. A missing file is an
// error; sql.Open would silently create an empty database.
func OpenGPKG(path string) (*GPKG, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "geodata: geopackage %s", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geodata: open sqlite")
	}
	return &GPKG{db: db, path: path}, nil
}

// CreateGPKG opens (or creates) a GeoPackage for writing and ensures the
// required container metadata tables and SRS rows exist.
func CreateGPKG(path string) (*GPKG, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geodata: open sqlite")
	}
	g := &GPKG{db: db, path: path}
	if err := g.ensureContainer(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return g, nil
}

// Close releases the underlying database handle.
func (g *GPKG) Close() error {
	return g.db.Close()
}

// Path returns the file path of the container.
func (g *GPKG) Path() string {
	return g.path
}

// Layers lists the layer names registered in gpkg_contents, in registration
// order.
func (g *GPKG) Layers(ctx context.Context) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT table_name FROM gpkg_contents`)
	if err != nil {
		return nil, eris.Wrap(err, "geodata: query gpkg_contents")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "geodata: scan layer name")
		}
		names = append(names, name)
	}
	return names, eris.Wrap(rows.Err(), "geodata: iterate layers")
}

// ReadLayer loads a full layer: attribute columns in table order (the fid
// primary key excluded) and decoded geometries when the layer is spatial.
func (g *GPKG) ReadLayer(ctx context.Context, name string) (*Layer, error) {
	layer := &Layer{Name: name}

	err := g.db.QueryRowContext(ctx,
		`SELECT column_name, geometry_type_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?`,
		name,
	).Scan(&layer.GeomCol, &layer.GeomType, &layer.SRID)
	if err != nil && err != sql.ErrNoRows {
		return nil, eris.Wrapf(err, "geodata: geometry columns for %s", name)
	}

	rows, err := g.db.QueryContext(ctx, `SELECT * FROM `+quoteIdent(name))
	if err != nil {
		return nil, eris.Wrapf(err, "geodata: read layer %s", name)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "geodata: layer columns")
	}
	for _, c := range cols {
		if c == "fid" || c == layer.GeomCol && layer.GeomCol != "" {
			continue
		}
		layer.Columns = append(layer.Columns, c)
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "geodata: scan layer %s", name)
		}

		f := Feature{Attrs: make(map[string]any, len(layer.Columns))}
		for i, c := range cols {
			if c == "fid" {
				continue
			}
			if layer.GeomCol != "" && c == layer.GeomCol {
				blob, _ := vals[i].([]byte)
				decoded, srid, decErr := DecodeGeometry(blob)
				if decErr != nil {
					return nil, eris.Wrapf(decErr, "geodata: layer %s geometry", name)
				}
				f.Geom = decoded
				if layer.SRID == 0 {
					layer.SRID = srid
				}
				continue
			}
			if b, ok := vals[i].([]byte); ok {
				f.Attrs[c] = string(b)
			} else {
				f.Attrs[c] = vals[i]
			}
		}
		layer.Features = append(layer.Features, f)
	}
	return layer, eris.Wrapf(rows.Err(), "geodata: iterate layer %s", name)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
