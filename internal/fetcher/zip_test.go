package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP_ShapefileSet(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"SNV_202507B.shp": "shp bytes",
		"SNV_202507B.dbf": "dbf bytes",
		"SNV_202507B.shx": "shx bytes",
		"SNV_202507B.prj": "prj bytes",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 4)

	data, err := os.ReadFile(filepath.Join(destDir, "SNV_202507B.dbf"))
	require.NoError(t, err)
	assert.Equal(t, "dbf bytes", string(data))
}

func TestExtractZIPFile_Specific(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"a.txt": "aaa",
		"b.txt": "bbb",
	})

	destDir := t.TempDir()
	path, err := ExtractZIPFile(zipPath, "b.txt", destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "b.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(data))
}

func TestExtractZIPFile_NotFound(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"a.txt": "aaa"})

	_, err := ExtractZIPFile(zipPath, "missing.txt", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFindByExt(t *testing.T) {
	paths := []string{
		"/lake/raw/SNV_202507B.shp",
		"/lake/raw/SNV_202507B.dbf",
		"/lake/raw/SNV_202507B.SHX",
	}

	shp, err := FindByExt(paths, ".shp")
	require.NoError(t, err)
	assert.Equal(t, "/lake/raw/SNV_202507B.shp", shp)

	shx, err := FindByExt(paths, ".shx")
	require.NoError(t, err)
	assert.Equal(t, "/lake/raw/SNV_202507B.SHX", shx, "extension match is case-insensitive")

	_, err = FindByExt(paths, ".gpkg")
	assert.Error(t, err)

	_, err = FindByExt([]string{"a.shp", "b.shp"}, ".shp")
	assert.Error(t, err, "two candidates are ambiguous")
}

func TestExtractZIP_EscapePrevention(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "malicious.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	fw, err := w.Create("../../../etc/passwd")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("nope")) //nolint:errcheck
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")
}

func TestExtractZIP_WithSubdirectory(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "nested.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	_, err = w.Create("malhas/")
	require.NoError(t, err)
	fw, err := w.Create("malhas/NE_Municipios_2022.shp")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("mesh")) //nolint:errcheck
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 1, "directory entries yield no paths")

	data, err := os.ReadFile(filepath.Join(destDir, "malhas", "NE_Municipios_2022.shp"))
	require.NoError(t, err)
	assert.Equal(t, "mesh", string(data))
}

func TestExtractZIP_InvalidArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notazip.zip")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip"), 0o644))

	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)
}
