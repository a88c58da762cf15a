package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestMaterialize(t *testing.T) {
	archive := zipBytes(t, map[string]string{
		"municipios.shp": "shp bytes",
		"municipios.dbf": "dbf bytes",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/snv.csv":
			_, _ = w.Write([]byte("br,uf\n101,PE\n"))
		case "/malha.zip":
			_, _ = w.Write(archive)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	present := filepath.Join(dir, "ibge", "pib.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(present), 0o755))
	require.NoError(t, os.WriteFile(present, []byte("old"), 0o644))

	res, err := Materialize(context.Background(), MaterializeOptions{
		HTTP: fastHTTPFetcher(),
		Sources: []Source{
			{Name: "snv", URL: srv.URL + "/snv.csv", Dest: filepath.Join(dir, "dnit", "snv.csv")},
			{Name: "malha", URL: srv.URL + "/malha.zip", Dest: filepath.Join(dir, "ibge", "malha.zip"), Unzip: true},
			{Name: "pib", URL: srv.URL + "/pib.csv", Dest: present},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Downloaded)
	assert.Equal(t, int64(1), res.Skipped)
	assert.Equal(t, int64(2), res.Extracted)

	data, err := os.ReadFile(filepath.Join(dir, "dnit", "snv.csv"))
	require.NoError(t, err)
	assert.Equal(t, "br,uf\n101,PE\n", string(data))

	// Extraction lands beside the archive.
	assert.FileExists(t, filepath.Join(dir, "ibge", "municipios.shp"))
	assert.FileExists(t, filepath.Join(dir, "ibge", "municipios.dbf"))

	// The present source was not re-fetched.
	data, err = os.ReadFile(present)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestMaterialize_FailedSourceAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := Materialize(context.Background(), MaterializeOptions{
		HTTP: fastHTTPFetcher(),
		Sources: []Source{
			{Name: "renda", URL: srv.URL + "/renda.csv", Dest: filepath.Join(dir, "renda.csv")},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renda")
}

func TestMaterialize_RejectsIncompleteSource(t *testing.T) {
	_, err := Materialize(context.Background(), MaterializeOptions{
		HTTP:    fastHTTPFetcher(),
		Sources: []Source{{Name: "semdest", URL: "http://example.com/x.csv"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "semdest")
}
