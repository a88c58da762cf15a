package fetcher

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// separators tried in order. The comma goes first so that the single-column
// rejection rule below only needs to watch for the remaining three.
var separators = []rune{',', ';', '|', '\t'}

// ReadTable loads a delimited text file (or an XLSX workbook, dispatched by
// extension) into a Table, sniffing encoding and separator. Brazilian public
// datasets arrive in any mix of UTF-8, Latin-1 and Windows-1252 with comma
// or semicolon separators, so every combination is tried until one parses
// into a plausible table.
func ReadTable(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls":
		return ReadXLSXTable(path, XLSXOptions{})
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", path)
	}

	var lastErr error
	for _, enc := range []string{"utf-8", "latin1", "cp1252"} {
		text, ok := decodeAs(data, enc)
		if !ok {
			continue
		}
		for _, sep := range separators {
			table, parseErr := parseCSV(text, sep)
			if parseErr != nil {
				lastErr = parseErr
				continue
			}
			// A single column whose header still contains a later separator
			// means we split on the wrong one.
			if len(table.Header) == 1 && strings.ContainsAny(table.Header[0], ";|\t") {
				continue
			}
			zap.L().Debug("fetcher: parsed table",
				zap.String("path", path),
				zap.String("encoding", enc),
				zap.String("separator", string(sep)),
				zap.Int("rows", len(table.Rows)),
				zap.Int("columns", len(table.Header)),
			)
			return table, nil
		}
	}

	if lastErr == nil {
		lastErr = eris.New("no encoding and separator combination matched")
	}
	return nil, eris.Wrapf(lastErr, "fetcher: parse %s", path)
}

// decodeAs converts raw bytes to UTF-8 text under the named encoding.
// UTF-8 input is validated and BOM-stripped; the single-byte encodings
// always succeed.
func decodeAs(data []byte, enc string) ([]byte, bool) {
	switch enc {
	case "utf-8":
		if !utf8.Valid(data) {
			return nil, false
		}
		return bytes.TrimPrefix(data, utf8BOM), true
	case "latin1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		return out, err == nil
	case "cp1252":
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		return out, err == nil
	default:
		return nil, false
	}
}

func parseCSV(text []byte, sep rune) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: csv parse")
	}
	if len(records) == 0 {
		return nil, eris.New("fetcher: empty table")
	}

	return &Table{Header: records[0], Rows: records[1:]}, nil
}
