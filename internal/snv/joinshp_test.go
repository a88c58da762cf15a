package snv

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/geodata"
)

func joinFixtureTable() *fetcher.Table {
	return &fetcher.Table{
		Header: []string{"id_trecho", "br", "br_pad", "uf", "km_ini", "km_fim", "ext_km", "situacao"},
		Rows: [][]string{
			{"T1", "101", "BR-101", "PE", "10", "20", "10", "PAV"},
			{"T2", "116", "BR-116", "BA", "100", "110", "10", "PAV"},
			{"T3", "407", "BR-407", "PI", "5", "15", "10", "IMP"},
			{"T4", "", "", "PE", "1", "2", "1", "PAV"},
		},
	}
}

func routesLayer() *geodata.Layer {
	return &geodata.Layer{
		Name:     "rotas",
		Columns:  []string{"rodovia", "uf", "km_inicio", "km_final", "cod_rota"},
		GeomCol:  "geom",
		GeomType: "LINESTRING",
		SRID:     4674,
		Features: []geodata.Feature{
			{
				Attrs: map[string]any{"rodovia": "101", "uf": "PE", "km_inicio": "8", "km_final": "25", "cod_rota": "R1"},
				Geom:  geom.NewLineStringFlat(geom.XY, []float64{-34.9, -8.0, -35.0, -8.5}),
			},
			{
				Attrs: map[string]any{"rodovia": "116", "uf": "BA", "km_inicio": "200", "km_final": "250", "cod_rota": "R2"},
				Geom:  geom.NewLineStringFlat(geom.XY, []float64{-38.5, -12.9, -38.6, -13.2}),
			},
		},
	}
}

func TestJoinLayer(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	gpkgPath := filepath.Join(dir, "joined.gpkg")
	g, err := geodata.CreateGPKG(gpkgPath)
	require.NoError(t, err)

	table := joinFixtureTable()
	join, err := joinLayer(ctx, zap.NewNop(), table, routesLayer(), g, dir, "rotas",
		JoinShapefilesOptions{KmTol: 2, TargetSRID: 4674})
	require.NoError(t, err)
	require.NoError(t, g.Close())

	assert.Equal(t, int64(4), join.Rows)
	assert.Equal(t, int64(2), join.Matched)
	assert.Equal(t, int64(1), join.Score2)
	assert.Equal(t, int64(2), join.Score1)
	assert.Equal(t, int64(1), join.Score0)

	g, err = geodata.OpenGPKG(gpkgPath)
	require.NoError(t, err)
	defer g.Close()
	layer, err := g.ReadLayer(ctx, "snv_rotas_join")
	require.NoError(t, err)
	require.Len(t, layer.Features, 4)

	first := layer.Features[0]
	assert.Equal(t, "BR-101", first.Str("BR_PAD"))
	assert.Equal(t, "PE", first.Str("UF"))
	assert.InDelta(t, 10, first.Float("KM_INI_SNV"), 1e-9)
	assert.InDelta(t, 8, first.Float("KM_INI_SHP"), 1e-9)
	assert.InDelta(t, 0, first.Float("km_delta"), 1e-9)
	assert.EqualValues(t, 1, first.Float("km_within_tol"))
	assert.EqualValues(t, 2, first.Float("join_score"))
	assert.NotNil(t, first.Geom)

	second := layer.Features[1]
	assert.EqualValues(t, 1, second.Float("join_score"))
	assert.EqualValues(t, 0, second.Float("km_within_tol"))
	assert.InDelta(t, 100, second.Float("km_delta"), 1e-9)
	assert.NotNil(t, second.Geom)

	assert.Nil(t, layer.Features[2].Geom)
	assert.Nil(t, layer.Features[3].Geom)
	assert.EqualValues(t, 0, layer.Features[3].Float("join_score"))

	diag, err := fetcher.ReadTable(filepath.Join(dir, "diag_join_rotas.csv"))
	require.NoError(t, err)
	require.Len(t, diag.Rows, 4)
	require.GreaterOrEqual(t, diag.Col("uf_shp"), 0)
	assert.Equal(t, "R1", diag.Rows[0][diag.Col("cod_rota")])
	assert.Equal(t, "8", diag.Rows[0][diag.Col("KM_INI_SHP")])
	assert.Equal(t, "", diag.Rows[2][diag.Col("cod_rota")])

	unmatched, err := fetcher.ReadTable(filepath.Join(dir, "unmatched_rotas.csv"))
	require.NoError(t, err)
	require.Len(t, unmatched.Rows, 1)
	assert.Equal(t, "0", unmatched.Rows[0][unmatched.Col("join_score")])
	assert.Equal(t, "PE", unmatched.Rows[0][unmatched.Col("UF")])
}

func TestJoinLayer_NothingMatched(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	gpkgPath := filepath.Join(dir, "joined.gpkg")
	g, err := geodata.CreateGPKG(gpkgPath)
	require.NoError(t, err)

	shp := &geodata.Layer{
		Name:     "bases",
		Columns:  []string{"rodovia", "uf", "km_inicio", "km_final"},
		GeomCol:  "geom",
		GeomType: "LINESTRING",
		SRID:     4674,
		Features: []geodata.Feature{
			{
				Attrs: map[string]any{"rodovia": "324", "uf": "BA", "km_inicio": "0", "km_final": "50"},
				Geom:  geom.NewLineStringFlat(geom.XY, []float64{-38.5, -12.9, -38.6, -13.2}),
			},
		},
	}
	join, err := joinLayer(ctx, zap.NewNop(), joinFixtureTable(), shp, g, dir, "bases",
		JoinShapefilesOptions{KmTol: 2, TargetSRID: 4674})
	require.NoError(t, err)

	assert.Zero(t, join.Matched)
	assert.Equal(t, int64(3), join.Score1)
	assert.Equal(t, int64(1), join.Score0)

	names, err := g.Layers(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
	require.NoError(t, g.Close())

	assert.FileExists(t, filepath.Join(dir, "diag_join_bases.csv"))
	assert.FileExists(t, filepath.Join(dir, "unmatched_bases.csv"))
}

func TestJoinShapefiles_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "snv.csv")
	table := &fetcher.Table{
		Header: []string{"br", "uf"},
		Rows:   [][]string{{"101", "PE"}},
	}
	require.NoError(t, table.WriteCSV(csvPath))

	_, err := JoinShapefiles(context.Background(), JoinShapefilesOptions{
		SNVCSV:  csvPath,
		Bases:   filepath.Join(dir, "bases.shp"),
		OutGPKG: filepath.Join(dir, "joined.gpkg"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
	assert.Contains(t, err.Error(), "br_pad")
}

func TestJoinShapefiles_SkipsMissingShapefiles(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "snv.csv")
	require.NoError(t, joinFixtureTable().WriteCSV(csvPath))

	res, err := JoinShapefiles(context.Background(), JoinShapefilesOptions{
		SNVCSV:  csvPath,
		OutGPKG: filepath.Join(dir, "joined.gpkg"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.RowsIn)
	assert.Empty(t, res.Joins)
	assert.Empty(t, res.Counters())
}

func TestParseKm(t *testing.T) {
	assert.InDelta(t, 103.25, parseKm("103.25"), 1e-9)
	assert.InDelta(t, 1234.5, parseKm("1.234,5"), 1e-9)
	assert.InDelta(t, 12.5, parseKm("12,5"), 1e-9)
	assert.True(t, math.IsNaN(parseKm("")))
	assert.True(t, math.IsNaN(parseKm("s/km")))
}
