package snv

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/geodata"
	"github.com/juanocv/magalu-cd-location/internal/linkage"
	"github.com/juanocv/magalu-cd-location/internal/normalize"
)

// snvRequiredColumns must exist in the interim CSV before a shapefile join
// can run.
var snvRequiredColumns = []string{"br_pad", "uf", "km_ini", "km_fim", "ext_km"}

// planKeepColumns are the interim attribute columns carried verbatim into
// the joined layer. The join columns themselves are re-emitted normalized
// as BR_PAD, UF, KM_INI_SNV and KM_FIM_SNV.
var planKeepColumns = []string{
	"br", "ext_km", "situacao", "pista", "classe", "sentido",
	"jurisdicao", "concessao", "data_ref",
}

// JoinShapefilesOptions configures the segment-to-shapefile join.
type JoinShapefilesOptions struct {
	SNVCSV     string // consolidated interim CSV
	Bases      string // bases shapefile path, skipped when empty
	Rotas      string // rotas shapefile path, skipped when empty
	OutGPKG    string // joined layers container, diagnostics land beside it
	KmTol      float64
	TargetSRID int
}

// ShapefileJoin reports the outcome for one shapefile prefix.
type ShapefileJoin struct {
	Prefix  string
	Rows    int64
	Matched int64
	Score2  int64
	Score1  int64
	Score0  int64
}

// JoinShapefilesResult aggregates the per-prefix outcomes.
type JoinShapefilesResult struct {
	RowsIn int64
	Joins  []ShapefileJoin
}

// Counters flattens the result for the run log.
func (r *JoinShapefilesResult) Counters() map[string]int64 {
	c := make(map[string]int64, len(r.Joins)*4)
	for _, j := range r.Joins {
		c[j.Prefix+"_matched"] = j.Matched
		c[j.Prefix+"_score2"] = j.Score2
		c[j.Prefix+"_score1"] = j.Score1
		c[j.Prefix+"_score0"] = j.Score0
	}
	return c
}

// JoinShapefiles left-joins the interim segment table onto the bases and
// rotas route shapefiles by normalized (BR, UF), breaking ties on the
// nearest kilometer interval. Each prefix yields a joined GPKG layer plus
// broad-merge and unmatched CSV diagnostics next to the container.
func JoinShapefiles(ctx context.Context, opts JoinShapefilesOptions) (*JoinShapefilesResult, error) {
	log := zap.L().With(zap.String("component", "snv.joinshp"))

	if opts.KmTol <= 0 {
		opts.KmTol = linkage.DefaultKmTolerance
	}
	if opts.TargetSRID == 0 {
		opts.TargetSRID = geodata.DefaultSRID
	}

	t, err := fetcher.ReadTable(opts.SNVCSV)
	if err != nil {
		return nil, err
	}
	for i, h := range t.Header {
		t.Header[i] = normalize.Header(h)
	}
	var missing []string
	for _, c := range snvRequiredColumns {
		if t.Col(c) < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("snv: interim CSV %s is missing required columns: %s",
			opts.SNVCSV, strings.Join(missing, ", "))
	}
	padRows(t)

	if err := os.MkdirAll(filepath.Dir(opts.OutGPKG), 0o755); err != nil {
		return nil, eris.Wrapf(err, "snv: create output dir for %s", opts.OutGPKG)
	}
	g, err := geodata.CreateGPKG(opts.OutGPKG)
	if err != nil {
		return nil, err
	}
	defer g.Close() //nolint:errcheck

	outDir := filepath.Dir(opts.OutGPKG)
	res := &JoinShapefilesResult{RowsIn: int64(len(t.Rows))}
	for _, src := range []struct {
		prefix string
		path   string
	}{
		{"bases", opts.Bases},
		{"rotas", opts.Rotas},
	} {
		if src.path == "" {
			log.Info("no shapefile given, skipping", zap.String("prefix", src.prefix))
			continue
		}
		join, err := joinShapefile(ctx, log, t, src.path, src.prefix, g, outDir, opts)
		if err != nil {
			return nil, err
		}
		res.Joins = append(res.Joins, *join)
	}
	return res, nil
}

func joinShapefile(ctx context.Context, log *zap.Logger, t *fetcher.Table, path, prefix string, g *geodata.GPKG, outDir string, opts JoinShapefilesOptions) (*ShapefileJoin, error) {
	layer, err := geodata.ReadShapefile(path, opts.TargetSRID)
	if err != nil {
		return nil, err
	}
	return joinLayer(ctx, log, t, layer, g, outDir, prefix, opts)
}

func joinLayer(ctx context.Context, log *zap.Logger, t *fetcher.Table, shp *geodata.Layer, g *geodata.GPKG, outDir, prefix string, opts JoinShapefilesOptions) (*ShapefileJoin, error) {
	ufCol := matchColumn(shp.Columns, `^uf$`, `\buf\b`, `sg_?uf`, `sigla_?uf`, `\bestado\b`)
	brCol := matchColumn(shp.Columns, `^br$`, `rodov`, `br_num`)
	kmIniCol := matchColumn(shp.Columns, `^km_ini$`, `km_?inicio`, `km_begin`, `km_inic`)
	kmFimCol := matchColumn(shp.Columns, `^km_fim$`, `km_?final`, `km_end`)
	log.Info("shapefile join columns",
		zap.String("prefix", prefix),
		zap.String("uf", ufCol),
		zap.String("br", brCol),
		zap.String("km_ini", kmIniCol),
		zap.String("km_fim", kmFimCol),
		zap.Int("features", len(shp.Features)),
	)

	cands := make([]linkage.Candidate, 0, len(shp.Features))
	for i := range shp.Features {
		f := &shp.Features[i]
		cands = append(cands, linkage.Candidate{
			Idx:   i,
			BR:    normalize.PadBR(f.Str(brCol)),
			UF:    normalize.UF(f.Str(ufCol)),
			KmIni: parseKm(f.Str(kmIniCol)),
			KmFim: parseKm(f.Str(kmFimCol)),
		})
	}
	idx := linkage.BuildIndex(cands)

	brIdx := t.Col("br_pad")
	ufIdx := t.Col("uf")
	kmIniIdx := t.Col("km_ini")
	kmFimIdx := t.Col("km_fim")

	keep := make([]string, 0, len(planKeepColumns))
	keepIdx := make([]int, 0, len(planKeepColumns))
	for _, c := range planKeepColumns {
		if i := t.Col(c); i >= 0 {
			keep = append(keep, c)
			keepIdx = append(keepIdx, i)
		}
	}
	outCols := append(append([]string{}, keep...),
		"BR_PAD", "UF", "KM_INI_SNV", "KM_FIM_SNV",
		"KM_INI_SHP", "KM_FIM_SHP", "km_delta", "km_within_tol", "join_score")
	out := &geodata.Layer{
		Name:     "snv_" + prefix + "_join",
		Columns:  outCols,
		GeomCol:  "geom",
		GeomType: shp.GeomType,
		SRID:     opts.TargetSRID,
	}

	shpOut := make([]string, len(shp.Columns))
	usedCols := make(map[string]bool, len(t.Header)+len(shp.Columns)+4)
	for _, c := range t.Header {
		usedCols[c] = true
	}
	for _, c := range []string{"BR_PAD", "UF", "KM_INI_SNV", "KM_FIM_SNV"} {
		usedCols[c] = true
	}
	for j, c := range shp.Columns {
		name := c
		if usedCols[name] {
			name = c + "_shp"
		}
		usedCols[name] = true
		shpOut[j] = name
	}
	diag := &fetcher.Table{
		Header: append(append(append(append([]string{}, t.Header...),
			"BR_PAD", "UF", "KM_INI_SNV", "KM_FIM_SNV"), shpOut...),
			"KM_INI_SHP", "KM_FIM_SHP"),
	}

	join := &ShapefileJoin{Prefix: prefix, Rows: int64(len(t.Rows))}
	var unmatchedFeats []geodata.Feature
	for i := range t.Rows {
		brPad := normalize.Clean(t.Cell(i, brIdx))
		uf := normalize.UF(t.Cell(i, ufIdx))
		kmIni := parseFloat(t.Cell(i, kmIniIdx))
		kmFim := parseFloat(t.Cell(i, kmFimIdx))

		group := idx[linkage.Key{BR: brPad, UF: uf}]
		best, delta, found := linkage.BestByIntervalOrStart(kmIni, group)
		score := linkage.Score(brPad, uf, delta, opts.KmTol)
		within := !math.IsNaN(delta) && delta <= opts.KmTol

		attrs := make(map[string]any, len(outCols))
		for j, c := range keep {
			attrs[c] = cellOrNil(t.Cell(i, keepIdx[j]))
		}
		attrs["BR_PAD"] = cellOrNil(brPad)
		attrs["UF"] = cellOrNil(uf)
		attrs["KM_INI_SNV"] = kmIni
		attrs["KM_FIM_SNV"] = kmFim
		attrs["km_delta"] = delta
		attrs["km_within_tol"] = int64(0)
		if within {
			attrs["km_within_tol"] = int64(1)
		}
		attrs["join_score"] = int64(score)

		feat := geodata.Feature{Attrs: attrs}
		if found {
			join.Matched++
			attrs["KM_INI_SHP"] = best.KmIni
			attrs["KM_FIM_SHP"] = best.KmFim
			feat.Geom = shp.Features[best.Idx].Geom
		} else {
			attrs["KM_INI_SHP"] = math.NaN()
			attrs["KM_FIM_SHP"] = math.NaN()
		}
		out.Features = append(out.Features, feat)

		switch score {
		case linkage.ScoreKeyAndTol:
			join.Score2++
		case linkage.ScoreKey:
			join.Score1++
		default:
			join.Score0++
			unmatchedFeats = append(unmatchedFeats, feat)
		}

		base := append([]string{}, t.Rows[i][:len(t.Header)]...)
		base = append(base, brPad, uf, formatFloat(kmIni), formatFloat(kmFim))
		if len(group) == 0 {
			diag.Rows = append(diag.Rows, append(base, make([]string, len(shpOut)+2)...))
			continue
		}
		for _, c := range group {
			row := append(append([]string{}, base...), featureRow(&shp.Features[c.Idx], shp.Columns)...)
			row = append(row, formatFloat(c.KmIni), formatFloat(c.KmFim))
			diag.Rows = append(diag.Rows, row)
		}
	}

	diagPath := filepath.Join(outDir, "diag_join_"+prefix+".csv")
	unmatchedPath := filepath.Join(outDir, "unmatched_"+prefix+".csv")

	if join.Matched == 0 {
		log.Warn("no shapefile feature matched, writing diagnostics only",
			zap.String("prefix", prefix),
			zap.Int64("rows", join.Rows),
		)
		if err := diag.WriteCSV(diagPath); err != nil {
			return nil, err
		}
		if err := diag.WriteCSV(unmatchedPath); err != nil {
			return nil, err
		}
		return join, nil
	}

	if err := g.WriteLayer(ctx, out); err != nil {
		return nil, err
	}
	if err := diag.WriteCSV(diagPath); err != nil {
		return nil, err
	}
	if err := layerTable(out.Columns, unmatchedFeats).WriteCSV(unmatchedPath); err != nil {
		return nil, err
	}

	log.Info("shapefile joined",
		zap.String("prefix", prefix),
		zap.String("layer", out.Name),
		zap.Int64("matched", join.Matched),
		zap.Int64("score2", join.Score2),
		zap.Int64("score1", join.Score1),
		zap.Int64("score0", join.Score0),
	)
	return join, nil
}

// parseKm parses a kilometer attribute: plain decimal first, the pt-BR
// form ("1.234,5") as fallback. DBF numerics carry dot decimals, which the
// pt-BR parser would misread by dropping the dot.
func parseKm(s string) float64 {
	if v := parseFloat(s); !math.IsNaN(v) {
		return v
	}
	return normalize.ParseNumber(s)
}

// cellOrNil maps an empty CSV cell to a SQL null.
func cellOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
