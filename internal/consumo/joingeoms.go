package consumo

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/geodata"
	"github.com/juanocv/magalu-cd-location/internal/normalize"
)

// thematicTextColumns stay TEXT in the output layer even when their values
// look numeric, so IBGE codes keep their fixed width.
var thematicTextColumns = map[string]bool{
	"code_muni": true,
	"nome_muni": true,
	"sigla":     true,
	"uf":        true,
}

// JoinGeomsOptions configures the score-onto-geometry join.
type JoinGeomsOptions struct {
	MuniGPKG string // IBGE municipality polygons, first layer is used
	ScoreCSV string
	OutGPKG  string
}

// JoinGeomsResult reports the thematic join coverage.
type JoinGeomsResult struct {
	Features int64
	Matched  int64
}

// Counters flattens the result for the run log.
func (r *JoinGeomsResult) Counters() map[string]int64 {
	return map[string]int64{
		"features": r.Features,
		"matched":  r.Matched,
	}
}

// JoinGeoms left-joins the score table onto municipality geometries on the
// 7-digit IBGE code and writes the thematic layer. Both inputs must exist;
// municipalities without a score row keep their geometry with null score
// attributes.
func JoinGeoms(ctx context.Context, opts JoinGeomsOptions) (*JoinGeomsResult, error) {
	log := zap.L().With(zap.String("component", "consumo.joingeoms"))

	g, err := geodata.OpenGPKG(opts.MuniGPKG)
	if err != nil {
		return nil, err
	}
	defer g.Close() //nolint:errcheck

	layers, err := g.Layers(ctx)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, eris.Errorf("consumo: %s has no layers", opts.MuniGPKG)
	}
	src, err := g.ReadLayer(ctx, layers[0])
	if err != nil {
		return nil, err
	}
	if !src.HasColumn("CD_MUN") {
		return nil, eris.Errorf("consumo: layer %s in %s has no CD_MUN column", src.Name, opts.MuniGPKG)
	}

	t, err := fetcher.ReadTable(opts.ScoreCSV)
	if err != nil {
		return nil, err
	}
	codeIdx := t.Col("code_muni")
	if codeIdx < 0 {
		return nil, eris.Errorf("consumo: %s has no code_muni column", opts.ScoreCSV)
	}
	byCode := make(map[string]int, len(t.Rows))
	for i := range t.Rows {
		code := normalize.DigitsZFill(t.Cell(i, codeIdx), muniCodeWidth)
		if code == "" {
			continue
		}
		if _, ok := byCode[code]; !ok {
			byCode[code] = i
		}
	}

	// SQLite column names are case-insensitive, so score columns clashing
	// with a layer column get a suffix instead of replacing it.
	outCols := append([]string{}, src.Columns...)
	scoreCols := make([]string, len(t.Header))
	for j, c := range t.Header {
		name := c
		for _, existing := range src.Columns {
			if strings.EqualFold(existing, c) {
				name = c + "_score"
				break
			}
		}
		scoreCols[j] = name
		outCols = append(outCols, name)
	}

	out := &geodata.Layer{
		Name:     thematicLayer,
		Columns:  outCols,
		GeomCol:  src.GeomCol,
		GeomType: src.GeomType,
		SRID:     src.SRID,
	}
	res := &JoinGeomsResult{Features: int64(len(src.Features))}
	for _, f := range src.Features {
		attrs := make(map[string]any, len(outCols))
		for _, c := range src.Columns {
			if v, ok := f.Attrs[c]; ok {
				attrs[c] = v
			}
		}
		if ri, ok := byCode[normalize.DigitsZFill(f.Str("CD_MUN"), muniCodeWidth)]; ok {
			for j, c := range t.Header {
				attrs[scoreCols[j]] = scoreValue(c, t.Cell(ri, j))
			}
			res.Matched++
		}
		out.Features = append(out.Features, geodata.Feature{Attrs: attrs, Geom: f.Geom})
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutGPKG), 0o755); err != nil {
		return nil, eris.Wrapf(err, "consumo: create output dir for %s", opts.OutGPKG)
	}
	dst, err := geodata.CreateGPKG(opts.OutGPKG)
	if err != nil {
		return nil, err
	}
	defer dst.Close() //nolint:errcheck
	if err := dst.WriteLayer(ctx, out); err != nil {
		return nil, err
	}
	log.Info("thematic layer written",
		zap.String("path", opts.OutGPKG),
		zap.String("layer", thematicLayer),
		zap.Int64("features", res.Features),
		zap.Int64("matched", res.Matched))
	return res, nil
}

// scoreValue types a score cell for the layer: empty stays null, numeric
// columns become REAL, fixed-width code columns stay text.
func scoreValue(col, s string) any {
	if s == "" {
		return nil
	}
	if thematicTextColumns[col] {
		return s
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}
