package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts all entries of a ZIP archive into destDir and returns
// the extracted file paths. The DNIT shapefile archives hold the .shp plus
// its sidecars (.dbf, .shx, .prj), all of which must land side by side.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open archive %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

// ExtractZIPFile extracts a single named entry from a ZIP archive and
// returns its path.
func ExtractZIPFile(zipPath, fileName, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: open archive %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.Name == fileName {
			return extractEntry(f, destDir)
		}
	}
	return "", eris.Errorf("fetcher: entry %q not found in %s", fileName, zipPath)
}

// FindByExt returns the single path in paths carrying the extension
// (case-insensitive, leading dot included). Zero or several matches are an
// error: a shapefile archive with two .shp entries is ambiguous.
func FindByExt(paths []string, ext string) (string, error) {
	var matches []string
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ext) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return "", eris.Errorf("fetcher: no %s file among %d extracted entries", ext, len(paths))
	case 1:
		return matches[0], nil
	default:
		return "", eris.Errorf("fetcher: %d %s files among extracted entries, expected one", len(matches), ext)
	}
}

// extractEntry writes one archive entry under destDir, refusing paths that
// escape it. Returns "" for directory entries.
func extractEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("fetcher: archive entry %q escapes destination", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "fetcher: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "fetcher: open archive entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "fetcher: write file")
	}
	return destPath, nil
}
