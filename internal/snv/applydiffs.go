package snv

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/geodata"
	"github.com/juanocv/magalu-cd-location/internal/linkage"
	"github.com/juanocv/magalu-cd-location/internal/normalize"
)

// diffAttrs is the attribute family a revision diff may overwrite on the
// consolidated CSV. Attributes only the diff side carries (pista,
// administracao) are appended as new columns.
var diffAttrs = []string{"situacao", "pista", "classe", "sentido", "administracao", "jurisdicao", "concessao"}

// ApplyDiffsOptions configures the diff reconciliation.
type ApplyDiffsOptions struct {
	CSVIn   string  // consolidated interim CSV
	Diffs   string  // revision diffs GeoPackage
	CSVOut  string  // updated CSV
	GPKGOut string  // matched geometries container, skipped when nothing matched
	CSVKey  string  // forced CSV key column
	DiffKey string  // forced diff key column
	KmTol   float64 // kilometer tolerance for the within-tolerance QC count
}

// ApplyDiffsResult reports the reconciliation outcome.
type ApplyDiffsResult struct {
	RowsIn            int64
	RowsOut           int64
	MatchedByKey      int64
	MatchedByFallback int64
	WithinTolerance   int64
	GeometryFeatures  int64
}

// Counters flattens the result for the run log.
func (r *ApplyDiffsResult) Counters() map[string]int64 {
	return map[string]int64{
		"matched_by_key":      r.MatchedByKey,
		"matched_by_fallback": r.MatchedByFallback,
		"within_tolerance":    r.WithinTolerance,
		"geometry_features":   r.GeometryFeatures,
	}
}

// csvSide holds the per-row normalized join attributes of the CSV side.
type csvSide struct {
	br    []string
	uf    []string
	kmIni []float64
}

// ApplyDiffs overlays the attribute changes of a revision-diff GeoPackage
// onto the consolidated CSV: by exact key first, then by nearest kilometer
// interval on the (BR, UF) pair for rows the keys missed. Diff values only
// overwrite when non-null. Matched diff features keep their geometry in a
// companion GeoPackage layer tagged with the source layer.
func ApplyDiffs(ctx context.Context, opts ApplyDiffsOptions) (*ApplyDiffsResult, error) {
	log := zap.L().With(zap.String("component", "snv.applydiffs"))

	if opts.KmTol <= 0 {
		opts.KmTol = linkage.DefaultKmTolerance
	}

	t, err := fetcher.ReadTable(opts.CSVIn)
	if err != nil {
		return nil, err
	}
	for i, h := range t.Header {
		t.Header[i] = normalize.Header(h)
	}
	padRows(t)

	csvKey := linkage.ChooseKey(t.Header, opts.CSVKey)
	if csvKey == "" {
		return nil, eris.New("snv: no join key column in the consolidated CSV (force one with --csv-key)")
	}
	keyIdx := t.Col(csvKey)
	side := csvJoinSide(t)

	g, err := geodata.OpenGPKG(opts.Diffs)
	if err != nil {
		return nil, err
	}
	defer g.Close() //nolint:errcheck

	names, err := g.Layers(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("diff layers", zap.String("path", opts.Diffs), zap.Strings("layers", names))

	n := len(t.Rows)
	matchedKey := make([]bool, n)
	matchedFallback := make([]bool, n)
	withinTol := make([]bool, n)

	var geoms []taggedFeature
	var geomCols []string
	geomSeen := map[string]bool{}
	srid := 0

	for _, name := range names {
		layer, err := g.ReadLayer(ctx, name)
		if err != nil {
			return nil, err
		}
		normalizeLayerColumns(layer)
		if srid == 0 {
			srid = layer.SRID
		}

		diffKey := linkage.ChooseKey(layer.Columns, opts.DiffKey)
		log.Info("diff layer read",
			zap.String("layer", name),
			zap.String("key", diffKey),
			zap.Int("features", len(layer.Features)),
		)

		attrs := presentAttrs(layer)
		attrIdx := make([]int, len(attrs))
		for j, a := range attrs {
			attrIdx[j] = ensureColumn(t, a)
		}

		if diffKey != "" {
			byKey := make(map[string]*geodata.Feature, len(layer.Features))
			for i := range layer.Features {
				k := layer.Features[i].Str(diffKey)
				if _, dup := byKey[k]; k != "" && !dup {
					byKey[k] = &layer.Features[i]
				}
			}

			csvKeys := make(map[string]bool, n)
			for i := 0; i < n; i++ {
				k := t.Cell(i, keyIdx)
				if k == "" {
					continue
				}
				csvKeys[k] = true
				f := byKey[k]
				if f == nil {
					continue
				}
				for j, a := range attrs {
					t.Rows[i][attrIdx[j]] = linkage.ApplyNonNull(t.Rows[i][attrIdx[j]], f.Str(a))
				}
				matchedKey[i] = true
			}

			for i := range layer.Features {
				f := &layer.Features[i]
				if f.Geom != nil && csvKeys[f.Str(diffKey)] {
					collectGeom(&geoms, &geomCols, geomSeen, layer.Columns, f, name)
				}
			}
		}

		idx := linkage.BuildIndex(layerCandidates(layer))
		for i := 0; i < n; i++ {
			if matchedKey[i] || side.br[i] == "" || side.uf[i] == "" {
				continue
			}
			best, delta, ok := linkage.BestByInterval(side.kmIni[i], idx[linkage.Key{BR: side.br[i], UF: side.uf[i]}])
			if !ok {
				continue
			}
			f := &layer.Features[best.Idx]
			for j, a := range attrs {
				t.Rows[i][attrIdx[j]] = linkage.ApplyNonNull(t.Rows[i][attrIdx[j]], f.Str(a))
			}
			matchedFallback[i] = true
			if !math.IsNaN(delta) && delta <= opts.KmTol {
				withinTol[i] = true
			}
			if f.Geom != nil {
				collectGeom(&geoms, &geomCols, geomSeen, layer.Columns, f, name+"_fallback")
			}
		}
	}

	res := &ApplyDiffsResult{
		RowsIn:           int64(n),
		RowsOut:          int64(n),
		GeometryFeatures: int64(len(geoms)),
	}
	for i := 0; i < n; i++ {
		if matchedKey[i] {
			res.MatchedByKey++
		}
		if matchedFallback[i] {
			res.MatchedByFallback++
		}
		if withinTol[i] {
			res.WithinTolerance++
		}
	}

	if err := t.WriteCSV(opts.CSVOut); err != nil {
		return nil, err
	}

	if opts.GPKGOut != "" {
		if len(geoms) == 0 {
			log.Info("no diff geometry matched, skipping geometry container", zap.String("path", opts.GPKGOut))
		} else if err := writeMatchedGeometry(ctx, opts.GPKGOut, geoms, geomCols, srid); err != nil {
			return nil, err
		}
	}

	log.Info("diffs applied",
		zap.String("path", opts.CSVOut),
		zap.Int64("rows", res.RowsOut),
		zap.Int64("matched_by_key", res.MatchedByKey),
		zap.Int64("matched_by_fallback", res.MatchedByFallback),
		zap.Int64("within_tolerance", res.WithinTolerance),
		zap.Int64("geometry_features", res.GeometryFeatures),
	)
	return res, nil
}

// csvJoinSide normalizes the consolidated CSV's join columns: UF and BR
// from the first matching candidate column, start kilometer as plain float.
func csvJoinSide(t *fetcher.Table) *csvSide {
	ufIdx := t.Col(firstColumn(t.Header, "uf", "sg_uf", "sigla_uf", "estado"))
	brIdx := t.Col(firstColumn(t.Header, "br", "vl_br", "rodovia_br", "no_rodovia", "rodovia"))
	kmIdx := t.Col(firstColumn(t.Header, "km_ini", "km_inicial"))

	side := &csvSide{
		br:    make([]string, len(t.Rows)),
		uf:    make([]string, len(t.Rows)),
		kmIni: make([]float64, len(t.Rows)),
	}
	for i := range t.Rows {
		side.uf[i] = normalize.UF(t.Cell(i, ufIdx))
		side.br[i] = normalize.PadBR(t.Cell(i, brIdx))
		side.kmIni[i] = parseFloat(t.Cell(i, kmIdx))
	}
	return side
}

// layerCandidates normalizes a diff layer's features for the broad join.
// vl_km_inic/vl_km_fina are the SNV revision-diff kilometer columns.
func layerCandidates(layer *geodata.Layer) []linkage.Candidate {
	ufCol := firstColumn(layer.Columns, "uf", "sg_uf", "sigla_uf", "estado")
	brCol := firstColumn(layer.Columns, "br", "vl_br", "rodovia_br", "no_rodovia", "rodovia")
	kmIniCol := firstColumn(layer.Columns, "vl_km_inic", "km_inic")
	kmFimCol := firstColumn(layer.Columns, "vl_km_fina", "km_fim")

	cands := make([]linkage.Candidate, 0, len(layer.Features))
	for i := range layer.Features {
		f := &layer.Features[i]
		cands = append(cands, linkage.Candidate{
			Idx:   i,
			BR:    normalize.PadBR(f.Str(brCol)),
			UF:    normalize.UF(f.Str(ufCol)),
			KmIni: f.Float(kmIniCol),
			KmFim: f.Float(kmFimCol),
		})
	}
	return cands
}

// presentAttrs returns the overwritable attributes the layer carries, in
// diffAttrs order.
func presentAttrs(layer *geodata.Layer) []string {
	present := make([]string, 0, len(diffAttrs))
	for _, a := range diffAttrs {
		if layer.HasColumn(a) {
			present = append(present, a)
		}
	}
	return present
}

// normalizeLayerColumns renames a layer's attribute columns to snake_case,
// keeping feature attrs reachable under the new names.
func normalizeLayerColumns(layer *geodata.Layer) {
	renames := map[string]string{}
	for i, c := range layer.Columns {
		n := normalize.Header(c)
		if n != c {
			renames[c] = n
			layer.Columns[i] = n
		}
	}
	if len(renames) == 0 {
		return
	}
	for i := range layer.Features {
		attrs := layer.Features[i].Attrs
		for old, n := range renames {
			if v, ok := attrs[old]; ok {
				attrs[n] = v
				delete(attrs, old)
			}
		}
	}
}

func collectGeom(geoms *[]taggedFeature, cols *[]string, seen map[string]bool, layerCols []string, f *geodata.Feature, src string) {
	for _, c := range layerCols {
		if !seen[c] {
			seen[c] = true
			*cols = append(*cols, c)
		}
	}
	*geoms = append(*geoms, taggedFeature{layer: src, feat: *f})
}

// writeMatchedGeometry writes every matched diff feature into a single
// snv_diffs_geometry_NE layer, its origin recorded in __src_layer.
func writeMatchedGeometry(ctx context.Context, path string, geoms []taggedFeature, cols []string, srid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "snv: create output dir for %s", path)
	}
	g, err := geodata.CreateGPKG(path)
	if err != nil {
		return err
	}
	defer g.Close() //nolint:errcheck

	out := &geodata.Layer{
		Name:    "snv_diffs_geometry_NE",
		Columns: append(append([]string{}, cols...), "__src_layer"),
		GeomCol: "geom",
		SRID:    srid,
	}
	for _, tf := range geoms {
		attrs := make(map[string]any, len(cols)+1)
		for _, c := range cols {
			if v, ok := tf.feat.Attrs[c]; ok {
				attrs[c] = v
			}
		}
		attrs["__src_layer"] = tf.layer
		out.Features = append(out.Features, geodata.Feature{Attrs: attrs, Geom: tf.feat.Geom})
	}
	return g.WriteLayer(ctx, out)
}
