package snv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
)

func TestDetectColumns(t *testing.T) {
	table := &fetcher.Table{
		Header: []string{
			"Cod", "BR", "UF", "Trecho", "Unidade Local",
			"km inicial", "km final", "Extensão", "Situação Física",
			"Classe de Rodovia", "Sentido", "Jurisdição",
		},
	}

	cols, err := DetectColumns(table, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, cols["id_trecho"])
	assert.Equal(t, 1, cols["br"])
	assert.Equal(t, 2, cols["uf"])
	assert.Equal(t, 3, cols["trecho_desc"])
	assert.Equal(t, 4, cols["localidade"])
	assert.Equal(t, 5, cols["km_ini"])
	assert.Equal(t, 6, cols["km_fim"])
	assert.Equal(t, 7, cols["ext_km"])
	assert.Equal(t, 8, cols["situacao"])
	assert.Equal(t, 9, cols["classe"])
	assert.Equal(t, 10, cols["sentido"])
	assert.Equal(t, 11, cols["jurisdicao"])
	assert.Equal(t, -1, cols["concessao"])
}

func TestDetectColumns_Override(t *testing.T) {
	table := &fetcher.Table{Header: []string{"codigo", "numero_rodovia", "UF"}}

	cols, err := DetectColumns(table, nil)
	require.NoError(t, err)
	assert.Equal(t, -1, cols["br"])

	cols, err = DetectColumns(table, ColumnMap{"br": "numero_rodovia"})
	require.NoError(t, err)
	assert.Equal(t, 1, cols["br"])
}

func TestDetectColumns_OverrideMissingColumn(t *testing.T) {
	table := &fetcher.Table{Header: []string{"BR", "UF"}}

	_, err := DetectColumns(table, ColumnMap{"br": "rodovia_federal"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a column of the input")
}

func TestLoadColumnMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "columns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("br: Rodovia\nuf: Estado\n"), 0o644))

	m, err := LoadColumnMap(path)
	require.NoError(t, err)
	assert.Equal(t, ColumnMap{"br": "Rodovia", "uf": "Estado"}, m)
}

func TestLoadColumnMap_EmptyPath(t *testing.T) {
	m, err := LoadColumnMap("")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestLoadColumnMap_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "columns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rodovia: BR\nbr: BR\n"), 0o644))

	_, err := LoadColumnMap(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fields: rodovia")
}
