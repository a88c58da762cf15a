package geodata

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// GeoPackage container identification: "GPKG" application id, spec 1.3.
const (
	gpkgApplicationID = 0x47504B47
	gpkgUserVersion   = 10300
)

const containerSchema = `
CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
	srs_name                 TEXT NOT NULL,
	srs_id                   INTEGER NOT NULL PRIMARY KEY,
	organization             TEXT NOT NULL,
	organization_coordsys_id INTEGER NOT NULL,
	definition               TEXT NOT NULL,
	description              TEXT
);

CREATE TABLE IF NOT EXISTS gpkg_contents (
	table_name  TEXT NOT NULL PRIMARY KEY,
	data_type   TEXT NOT NULL,
	identifier  TEXT UNIQUE,
	description TEXT DEFAULT '',
	last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	min_x       DOUBLE,
	min_y       DOUBLE,
	max_x       DOUBLE,
	max_y       DOUBLE,
	srs_id      INTEGER,
	CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);

CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
	table_name         TEXT NOT NULL,
	column_name        TEXT NOT NULL,
	geometry_type_name TEXT NOT NULL,
	srs_id             INTEGER NOT NULL,
	z                  TINYINT NOT NULL,
	m                  TINYINT NOT NULL,
	CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
	CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
	CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);
`

// sirgas2000 is the CRS of the Brazilian official cartography (EPSG:4674).
const sirgas2000Definition = `GEOGCS["SIRGAS 2000",DATUM["Sistema_de_Referencia_Geocentrico_para_las_AmericaS_2000",SPHEROID["GRS 1980",6378137,298.257222101],TOWGS84[0,0,0,0,0,0,0]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4674"]]`

func (g *GPKG) ensureContainer(ctx context.Context) error {
	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID),
		fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion),
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := g.db.ExecContext(ctx, pragma); err != nil {
			return eris.Wrapf(err, "geodata: exec %s", pragma)
		}
	}
	if _, err := g.db.ExecContext(ctx, containerSchema); err != nil {
		return eris.Wrap(err, "geodata: create container tables")
	}

	seed := []struct {
		name       string
		srsID      int
		org        string
		orgID      int
		definition string
	}{
		{"Undefined cartesian SRS", -1, "NONE", -1, "undefined"},
		{"Undefined geographic SRS", 0, "NONE", 0, "undefined"},
		{"WGS 84 geodetic", 4326, "EPSG", 4326, `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]]`},
	}
	for _, s := range seed {
		if _, err := g.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO gpkg_spatial_ref_sys (srs_name, srs_id, organization, organization_coordsys_id, definition) VALUES (?, ?, ?, ?, ?)`,
			s.name, s.srsID, s.org, s.orgID, s.definition,
		); err != nil {
			return eris.Wrap(err, "geodata: seed spatial_ref_sys")
		}
	}
	return nil
}

func (g *GPKG) ensureSRS(ctx context.Context, srid int) error {
	name := fmt.Sprintf("EPSG:%d", srid)
	definition := "undefined"
	if srid == DefaultSRID {
		name = "SIRGAS 2000"
		definition = sirgas2000Definition
	}
	_, err := g.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO gpkg_spatial_ref_sys (srs_name, srs_id, organization, organization_coordsys_id, definition) VALUES (?, ?, 'EPSG', ?, ?)`,
		name, srid, srid, definition,
	)
	return eris.Wrapf(err, "geodata: register srs %d", srid)
}

// WriteLayer replaces the named layer with the given features, registering
// it in gpkg_contents (and gpkg_geometry_columns when spatial) and recording
// the layer envelope. Attribute column types are inferred from the first
// non-null value per column.
func (g *GPKG) WriteLayer(ctx context.Context, layer *Layer) error {
	if layer.Name == "" {
		return eris.New("geodata: layer name required")
	}

	srid := layer.SRID
	if srid == 0 {
		srid = DefaultSRID
	}

	geomCol := layer.GeomCol
	geomType := layer.GeomType
	if geomCol == "" {
		for _, f := range layer.Features {
			if f.Geom != nil {
				geomCol = "geom"
				break
			}
		}
	}
	if geomCol != "" && geomType == "" {
		geomType = "GEOMETRY"
		for _, f := range layer.Features {
			if f.Geom != nil {
				geomType = typeName(f.Geom)
				break
			}
		}
	}

	if err := g.ensureSRS(ctx, srid); err != nil {
		return err
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "geodata: begin write")
	}
	defer tx.Rollback() //nolint:errcheck

	quoted := quoteIdent(layer.Name)
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS ` + quoted,
		`DELETE FROM gpkg_geometry_columns WHERE table_name = ` + quoteText(layer.Name),
		`DELETE FROM gpkg_contents WHERE table_name = ` + quoteText(layer.Name),
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "geodata: reset layer %s", layer.Name)
		}
	}

	defs := make([]string, 0, len(layer.Columns)+2)
	defs = append(defs, `fid INTEGER PRIMARY KEY AUTOINCREMENT`)
	for _, c := range layer.Columns {
		defs = append(defs, quoteIdent(c)+" "+inferSQLType(layer.Features, c))
	}
	if geomCol != "" {
		defs = append(defs, quoteIdent(geomCol)+" BLOB")
	}
	create := `CREATE TABLE ` + quoted + ` (` + strings.Join(defs, ", ") + `)`
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return eris.Wrapf(err, "geodata: create layer table %s", layer.Name)
	}

	cols := make([]string, 0, len(layer.Columns)+1)
	for _, c := range layer.Columns {
		cols = append(cols, quoteIdent(c))
	}
	if geomCol != "" {
		cols = append(cols, quoteIdent(geomCol))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO `+quoted+` (`+strings.Join(cols, ", ")+`) VALUES (`+placeholders+`)`)
	if err != nil {
		return eris.Wrapf(err, "geodata: prepare insert %s", layer.Name)
	}
	defer insert.Close()

	var env *envelope
	for _, f := range layer.Features {
		args := make([]any, 0, len(cols))
		for _, c := range layer.Columns {
			args = append(args, sqlValue(f.Attrs[c]))
		}
		if geomCol != "" {
			blob, encErr := EncodeGeometry(f.Geom, srid)
			if encErr != nil {
				return encErr
			}
			args = append(args, blob)
			if f.Geom != nil {
				env = env.extend(f.Geom.Bounds().Min(0), f.Geom.Bounds().Min(1), f.Geom.Bounds().Max(0), f.Geom.Bounds().Max(1))
			}
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return eris.Wrapf(err, "geodata: insert feature into %s", layer.Name)
		}
	}

	dataType := "attributes"
	if geomCol != "" {
		dataType = "features"
	}
	var minX, minY, maxX, maxY any
	if env != nil {
		minX, minY, maxX, maxY = env.minX, env.minY, env.maxX, env.maxY
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, last_change, min_x, min_y, max_x, max_y, srs_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		layer.Name, dataType, layer.Name, time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		minX, minY, maxX, maxY, srid,
	); err != nil {
		return eris.Wrapf(err, "geodata: register contents %s", layer.Name)
	}
	if geomCol != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m) VALUES (?, ?, ?, ?, 0, 0)`,
			layer.Name, geomCol, geomType, srid,
		); err != nil {
			return eris.Wrapf(err, "geodata: register geometry column %s", layer.Name)
		}
	}

	return eris.Wrapf(tx.Commit(), "geodata: commit layer %s", layer.Name)
}

type envelope struct {
	minX, minY, maxX, maxY float64
}

func (e *envelope) extend(minX, minY, maxX, maxY float64) *envelope {
	if e == nil {
		return &envelope{minX: minX, minY: minY, maxX: maxX, maxY: maxY}
	}
	e.minX = math.Min(e.minX, minX)
	e.minY = math.Min(e.minY, minY)
	e.maxX = math.Max(e.maxX, maxX)
	e.maxY = math.Max(e.maxY, maxY)
	return e
}

// sqlValue maps attribute values to driver-friendly ones: NaN floats become
// NULL so missing numerics round-trip as nulls rather than failing.
func sqlValue(v any) any {
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return nil
	}
	return v
}

func inferSQLType(features []Feature, col string) string {
	for _, f := range features {
		switch v := f.Attrs[col].(type) {
		case int, int64:
			return "INTEGER"
		case float64:
			if math.IsNaN(v) {
				continue
			}
			return "REAL"
		case string, []byte:
			return "TEXT"
		}
	}
	return "TEXT"
}

func quoteText(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
