package geodata

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestGPKG_WriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "case.gpkg")

	g, err := CreateGPKG(path)
	require.NoError(t, err)

	layer := &Layer{
		Name:    "municipios",
		Columns: []string{"code_muni", "nome_muni", "pop_2021", "score"},
		SRID:    4674,
		Features: []Feature{
			{
				Attrs: map[string]any{
					"code_muni": "2611606",
					"nome_muni": "Recife",
					"pop_2021":  int64(1661017),
					"score":     0.87,
				},
				Geom: geom.NewPointFlat(geom.XY, []float64{-34.8770, -8.0476}),
			},
			{
				Attrs: map[string]any{
					"code_muni": "2927408",
					"nome_muni": "Salvador",
					"pop_2021":  int64(2900319),
					"score":     math.NaN(),
				},
				Geom: geom.NewPointFlat(geom.XY, []float64{-38.5014, -12.9714}),
			},
		},
	}

	require.NoError(t, g.WriteLayer(ctx, layer))
	require.NoError(t, g.Close())

	g, err = OpenGPKG(path)
	require.NoError(t, err)
	defer g.Close()

	names, err := g.Layers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"municipios"}, names)

	got, err := g.ReadLayer(ctx, "municipios")
	require.NoError(t, err)

	assert.Equal(t, "geom", got.GeomCol)
	assert.Equal(t, "POINT", got.GeomType)
	assert.Equal(t, 4674, got.SRID)
	require.Len(t, got.Features, 2)

	first := got.Features[0]
	assert.Equal(t, "Recife", first.Str("nome_muni"))
	assert.Equal(t, "2611606", first.Str("code_muni"))
	assert.InDelta(t, 1661017, first.Float("pop_2021"), 0.5)
	assert.InDelta(t, 0.87, first.Float("score"), 1e-9)

	require.NotNil(t, first.Geom)
	pt, ok := first.Geom.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, -34.8770, pt.X(), 1e-9)
	assert.InDelta(t, -8.0476, pt.Y(), 1e-9)

	// NaN score was stored as NULL and comes back as NaN.
	assert.True(t, math.IsNaN(got.Features[1].Float("score")))
}

func TestGPKG_WriteLayer_Replaces(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "replace.gpkg")

	g, err := CreateGPKG(path)
	require.NoError(t, err)
	defer g.Close()

	layer := &Layer{
		Name:    "trechos",
		Columns: []string{"br"},
		Features: []Feature{
			{Attrs: map[string]any{"br": "101"}},
			{Attrs: map[string]any{"br": "116"}},
		},
	}
	require.NoError(t, g.WriteLayer(ctx, layer))

	layer.Features = layer.Features[:1]
	require.NoError(t, g.WriteLayer(ctx, layer))

	got, err := g.ReadLayer(ctx, "trechos")
	require.NoError(t, err)
	assert.Len(t, got.Features, 1)

	names, err := g.Layers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"trechos"}, names)
}

func TestGPKG_AttributeOnlyLayer(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attrs.gpkg")

	g, err := CreateGPKG(path)
	require.NoError(t, err)
	defer g.Close()

	layer := &Layer{
		Name:    "resumo",
		Columns: []string{"uf", "ext_km"},
		Features: []Feature{
			{Attrs: map[string]any{"uf": "PE", "ext_km": 1234.5}},
		},
	}
	require.NoError(t, g.WriteLayer(ctx, layer))

	got, err := g.ReadLayer(ctx, "resumo")
	require.NoError(t, err)
	assert.Empty(t, got.GeomCol)
	require.Len(t, got.Features, 1)
	assert.Equal(t, "PE", got.Features[0].Str("uf"))
	assert.InDelta(t, 1234.5, got.Features[0].Float("ext_km"), 1e-9)
	assert.Nil(t, got.Features[0].Geom)
}

func TestOpenGPKG_Missing(t *testing.T) {
	_, err := OpenGPKG(filepath.Join(t.TempDir(), "nope.gpkg"))
	assert.Error(t, err)
}
