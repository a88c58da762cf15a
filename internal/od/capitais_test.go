package od

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/geodata"
	"github.com/juanocv/magalu-cd-location/internal/resilience"
	"github.com/juanocv/magalu-cd-location/pkg/osrm"
)

func readCSV(t *testing.T, path string) *fetcher.Table {
	t.Helper()
	tab, err := fetcher.ReadTable(path)
	require.NoError(t, err)
	return tab
}

func cellFloat(t *testing.T, row []string, idx int) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(row[idx], 64)
	require.NoError(t, err)
	return v
}

// One row per origin (Recife, Salvador), one column per NE capital.
// Recife -> São Luís is null to exercise unreachable pairs.
const capitaisTableJSON = `{
	"code": "Ok",
	"durations": [
		[41400, 0, 28800, null, 32400, 10800, 4320, 9000, 18000],
		[0, 41400, 43200, 57600, 39600, 39600, 37800, 21600, 11880]
	],
	"distances": [
		[839000, 0, 800000, null, 950000, 297000, 120000, 256000, 501000],
		[0, 839000, 1200000, 1600000, 1100000, 1100000, 1050000, 632000, 356000]
	]
}`

func singleTry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestCapitais(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0;1", r.URL.Query().Get("sources"))
		assert.Equal(t, "2;3;4;5;6;7;8;9;10", r.URL.Query().Get("destinations"))
		assert.Equal(t, "duration,distance", r.URL.Query().Get("annotations"))
		assert.Contains(t, r.URL.Path, "-34.877,-8.0476")
		assert.Contains(t, r.URL.Path, "-44.3028,-2.5307")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, capitaisTableJSON)
	}))
	defer srv.Close()

	dir := t.TempDir()
	outCSV := filepath.Join(dir, "osrm", "od_capitais_recife_salvador.csv")
	client := osrm.NewClient(osrm.WithBaseURL(srv.URL), osrm.WithRateLimit(1000))

	res, err := Capitais(context.Background(), CapitaisOptions{
		Client: client,
		OutCSV: outCSV,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(18), res.Pairs)
	assert.Equal(t, int64(17), res.Reachable)
	assert.Equal(t, map[string]int64{"pairs": 18, "reachable": 17}, res.Counters())

	out := readCSV(t, outCSV)
	require.Equal(t, capitalColumns, out.Header)
	require.Len(t, out.Rows, 18)

	recifeSalvador := out.Rows[0]
	assert.Equal(t, "Recife-PE", recifeSalvador[0])
	assert.Equal(t, "Salvador-BA", recifeSalvador[1])
	assert.Equal(t, "41400", recifeSalvador[2])
	assert.Equal(t, "11.5", recifeSalvador[3])
	assert.Equal(t, "839000", recifeSalvador[4])
	assert.Equal(t, "839", recifeSalvador[5])
	wantLine := geodata.GreatCircleKm(-8.0476, -34.8770, -12.9714, -38.5014)
	assert.InDelta(t, wantLine, cellFloat(t, recifeSalvador, 6), 1e-9)

	// Unreachable pair: route cells empty, great-circle still present.
	saoLuis := out.Rows[3]
	assert.Equal(t, "São Luís-MA", saoLuis[1])
	assert.Equal(t, "", saoLuis[2])
	assert.Equal(t, "", saoLuis[3])
	assert.Equal(t, "", saoLuis[4])
	assert.Equal(t, "", saoLuis[5])
	assert.NotEmpty(t, saoLuis[6])

	// Salvador to itself.
	salvadorSelf := out.Rows[9]
	assert.Equal(t, "Salvador-BA", salvadorSelf[0])
	assert.Equal(t, "Salvador-BA", salvadorSelf[1])
	assert.Equal(t, "0", salvadorSelf[2])
	assert.Equal(t, "0", salvadorSelf[6])
}

func TestCapitais_ServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := osrm.NewClient(
		osrm.WithBaseURL(srv.URL),
		osrm.WithRateLimit(1000),
		osrm.WithRetry(singleTry()),
	)
	_, err := Capitais(context.Background(), CapitaisOptions{
		Client: client,
		OutCSV: filepath.Join(t.TempDir(), "out.csv"),
	})
	require.Error(t, err)
}
