package consumo

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
)

const pibFixture = `code_muni;nome_muni;sigla;uf;pib_pc_2021_brl
2611606;Recife;PE;Pernambuco;40.000,00
2607901;Jaboatão dos Guararapes; pe ;Pernambuco;10.000,00
2927408;Salvador;BA;Bahia;30.000,00
2900000;Interior;BA;Bahia;
`

const popFixture = `Código UF;Cód. Município;População 2021
26;11606;1.600.000
26;7901;500.000
29;27408;2.000.000
`

const rendaFixture = `Sigla da UF;Renda per capita 2024 (R$)
PE;1.500,00
BA;1.200,00
`

func writeScoreInputs(t *testing.T, dir string) (pib, pop, renda string) {
	t.Helper()
	pib = filepath.Join(dir, "pib_municipal_2021.csv")
	pop = filepath.Join(dir, "populacao_municipal_nordeste_2021.csv")
	renda = filepath.Join(dir, "renda_per_capita_uf_2024.csv")
	require.NoError(t, os.WriteFile(pib, []byte(pibFixture), 0o644))
	require.NoError(t, os.WriteFile(pop, []byte(popFixture), 0o644))
	require.NoError(t, os.WriteFile(renda, []byte(rendaFixture), 0o644))
	return pib, pop, renda
}

func cellFloat(t *testing.T, row []string, idx int) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(row[idx], 64)
	require.NoError(t, err)
	return v
}

func readCSV(t *testing.T, path string) *fetcher.Table {
	t.Helper()
	tab, err := fetcher.ReadTable(path)
	require.NoError(t, err)
	return tab
}

func TestScore(t *testing.T) {
	dir := t.TempDir()
	pib, pop, renda := writeScoreInputs(t, dir)
	outCSV := filepath.Join(dir, "processed", "consumo_municipal_NE_2021.csv")

	res, err := Score(context.Background(), ScoreOptions{
		PIBCSV:   pib,
		PopCSV:   pop,
		RendaCSV: renda,
		OutCSV:   outCSV,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4), res.Rows)
	assert.Equal(t, int64(3), res.PopFilled)
	assert.Equal(t, int64(4), res.RendaFilled)
	assert.Equal(t, map[string]int64{
		"pop_filled":        3,
		"renda_filled":      4,
		"geometry_features": 0,
	}, res.Counters())

	out, err := fetcher.ReadTable(outCSV)
	require.NoError(t, err)
	require.Equal(t, scoreColumns, out.Header)
	require.Len(t, out.Rows, 4)

	// Recife: pop 1.6M, renda 1500, adj 40000/25000 = 1.6, highest proxy.
	recife := out.Rows[0]
	assert.Equal(t, "2611606", recife[0])
	assert.Equal(t, "Recife", recife[1])
	assert.Equal(t, "PE", recife[2])
	assert.Equal(t, "Pernambuco", recife[3])
	assert.Equal(t, "1600000", recife[4])
	assert.Equal(t, "40000", recife[5])
	assert.Equal(t, "1500", recife[6])
	assert.Equal(t, "1.6", recife[7])
	assert.InDelta(t, 3.84e9, cellFloat(t, recife, 8), 1.0)
	assert.InDelta(t, 1.0, cellFloat(t, recife, 9), 1e-6)
	assert.InDelta(t, 0.5804988662, cellFloat(t, recife, 10), 1e-6)

	// Jaboatão: sigla upper-trimmed, adjustment clipped at the floor,
	// lowest proxy so the min-max score bottoms out at zero.
	jaboatao := out.Rows[1]
	assert.Equal(t, "2607901", jaboatao[0])
	assert.Equal(t, "PE", jaboatao[2])
	assert.Equal(t, "0.5", jaboatao[7])
	assert.Equal(t, "0", jaboatao[9])
	assert.InDelta(t, 0.0566893424, cellFloat(t, jaboatao, 10), 1e-6)

	// Salvador: only BA value, so the state mean is its own and adj is 1.
	salvador := out.Rows[2]
	assert.Equal(t, "2927408", salvador[0])
	assert.Equal(t, "1", salvador[7])
	assert.InDelta(t, 0.5844155844, cellFloat(t, salvador, 9), 1e-6)
	assert.InDelta(t, 0.3628117914, cellFloat(t, salvador, 10), 1e-6)

	// Interior: no population row, so everything downstream stays empty.
	interior := out.Rows[3]
	assert.Equal(t, "2900000", interior[0])
	assert.Equal(t, "", interior[4])
	assert.Equal(t, "1200", interior[6])
	assert.Equal(t, "", interior[7])
	assert.Equal(t, "", interior[8])
	assert.Equal(t, "", interior[9])
	assert.Equal(t, "", interior[10])
}

func TestScore_WithGeomDegrades(t *testing.T) {
	dir := t.TempDir()
	pib, pop, renda := writeScoreInputs(t, dir)
	outCSV := filepath.Join(dir, "consumo.csv")

	res, err := Score(context.Background(), ScoreOptions{
		PIBCSV:   pib,
		PopCSV:   pop,
		RendaCSV: renda,
		OutCSV:   outCSV,
		WithGeom: true,
		MuniGPKG: filepath.Join(dir, "missing.gpkg"),
		OutGPKG:  filepath.Join(dir, "consumo.gpkg"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.GeometryFeatures)
	assert.FileExists(t, outCSV)
	assert.NoFileExists(t, filepath.Join(dir, "consumo.gpkg"))
}

func TestScore_MissingRequiredColumn(t *testing.T) {
	dir := t.TempDir()
	_, pop, renda := writeScoreInputs(t, dir)
	pib := filepath.Join(dir, "pib_bad.csv")
	require.NoError(t, os.WriteFile(pib, []byte("municipio;sigla;pib_pc_2021_brl\nRecife;PE;1,0\n"), 0o644))

	_, err := Score(context.Background(), ScoreOptions{PIBCSV: pib, PopCSV: pop, RendaCSV: renda})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code_muni")
}

func TestReadPopulation_UnsplitCode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pop.csv")
	require.NoError(t, os.WriteFile(path, []byte("code_muni,pop_2021\n2611606,1661017\n,999\n"), 0o644))

	pop, err := readPopulation(path)
	require.NoError(t, err)
	require.Len(t, pop, 1)
	assert.Equal(t, float64(1661017), pop["2611606"])
}
