package fetcher

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rotisserie/eris"
)

// Table is an in-memory tabular dataset: a header row plus data rows. Rows
// may be ragged when the source was; use Cell for bounds-safe access.
type Table struct {
	Header []string
	Rows   [][]string
}

// Col returns the index of the named column, -1 when absent.
func (t *Table) Col(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// DetectCol returns the index of the first column whose header matches any
// of the given case-insensitive regexes. Patterns are tried in priority
// order, so an exact-name pattern placed first wins over looser ones.
func (t *Table) DetectCol(patterns ...string) int {
	for _, pat := range patterns {
		rgx, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			continue
		}
		for i, h := range t.Header {
			if rgx.MatchString(h) {
				return i
			}
		}
	}
	return -1
}

// Cell returns the value at (row, col), "" when the column index is negative
// or the row is too short.
func (t *Table) Cell(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// WriteCSV writes the table as UTF-8 comma-separated CSV, creating parent
// directories as needed. All pipeline interim and processed outputs use this
// format regardless of what the source looked like.
func (t *Table) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "table: create output dir for %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "table: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return eris.Wrap(err, "table: write header")
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "table: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "table: flush")
	}

	return nil
}
