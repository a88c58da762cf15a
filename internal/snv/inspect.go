package snv

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/geodata"
	"github.com/juanocv/magalu-cd-location/internal/normalize"
)

// InspectOptions configures the diffs GeoPackage inspection.
type InspectOptions struct {
	GPKG    string // diffs container to inspect
	OutGPKG string // optional filtered container, one <layer>_NE per input layer
	OutCSV  string // optional combined attribute CSV
}

// LayerReport summarizes one inspected layer.
type LayerReport struct {
	Name     string
	UFColumn string // detected state column, "" when none
	Rows     int
	NERows   int
	Spatial  bool
}

// InspectResult aggregates the inspection across layers.
type InspectResult struct {
	Layers  []LayerReport
	RowsIn  int64
	RowsOut int64
}

// Counters flattens the result for the run log.
func (r *InspectResult) Counters() map[string]int64 {
	return map[string]int64{"layers": int64(len(r.Layers))}
}

// Inspect lists the layers of a diffs GeoPackage, filters each to the
// northeastern states when a UF column is present (layers without one pass
// through whole), and optionally exports the filtered layers plus a
// combined attribute CSV tagged with the source layer.
func Inspect(ctx context.Context, opts InspectOptions) (*InspectResult, error) {
	log := zap.L().With(zap.String("component", "snv.inspect"))

	g, err := geodata.OpenGPKG(opts.GPKG)
	if err != nil {
		return nil, err
	}
	defer g.Close() //nolint:errcheck

	names, err := g.Layers(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("layers in container", zap.String("path", opts.GPKG), zap.Strings("layers", names))

	var outG *geodata.GPKG
	if opts.OutGPKG != "" {
		if err := os.MkdirAll(filepath.Dir(opts.OutGPKG), 0o755); err != nil {
			return nil, eris.Wrapf(err, "snv: create output dir for %s", opts.OutGPKG)
		}
		outG, err = geodata.CreateGPKG(opts.OutGPKG)
		if err != nil {
			return nil, err
		}
		defer outG.Close() //nolint:errcheck
	}

	res := &InspectResult{}
	var unionCols []string
	colSeen := map[string]bool{}
	var collected []taggedFeature

	for _, name := range names {
		layer, err := g.ReadLayer(ctx, name)
		if err != nil {
			log.Warn("skipping unreadable layer", zap.String("layer", name), zap.Error(err))
			continue
		}

		ufCol := detectUFColumn(layer.Columns)
		kept := layer.Features
		if ufCol != "" {
			kept = make([]geodata.Feature, 0, len(layer.Features))
			for _, f := range layer.Features {
				if normalize.Northeast(normalize.UF(f.Str(ufCol))) {
					kept = append(kept, f)
				}
			}
		}

		report := LayerReport{
			Name:     name,
			UFColumn: ufCol,
			Rows:     len(layer.Features),
			NERows:   len(kept),
			Spatial:  layer.GeomCol != "",
		}
		res.Layers = append(res.Layers, report)
		res.RowsIn += int64(report.Rows)
		res.RowsOut += int64(report.NERows)
		log.Info("layer filtered",
			zap.String("layer", name),
			zap.String("uf_column", ufCol),
			zap.Int("rows", report.Rows),
			zap.Int("rows_ne", report.NERows),
		)

		for _, c := range layer.Columns {
			if !colSeen[c] {
				colSeen[c] = true
				unionCols = append(unionCols, c)
			}
		}
		for _, f := range kept {
			collected = append(collected, taggedFeature{layer: name, feat: f})
		}

		if outG == nil || len(kept) == 0 {
			continue
		}
		if report.Spatial {
			filtered := &geodata.Layer{
				Name:     name + "_NE",
				Columns:  layer.Columns,
				GeomCol:  layer.GeomCol,
				GeomType: layer.GeomType,
				SRID:     layer.SRID,
				Features: kept,
			}
			if err := outG.WriteLayer(ctx, filtered); err != nil {
				return nil, err
			}
		} else {
			// Attribute-only layers degrade to a CSV next to the container.
			csvPath := strings.TrimSuffix(opts.OutGPKG, filepath.Ext(opts.OutGPKG)) + "_" + name + "_NE.csv"
			if err := layerTable(layer.Columns, kept).WriteCSV(csvPath); err != nil {
				return nil, err
			}
			log.Info("layer has no geometry, exported attributes as CSV",
				zap.String("layer", name), zap.String("path", csvPath))
		}
	}

	if len(collected) == 0 {
		log.Info("nothing collected")
		return res, nil
	}

	if opts.OutCSV != "" {
		combined := &fetcher.Table{Header: append(unionCols, "__layer")}
		for _, tf := range collected {
			row := make([]string, 0, len(combined.Header))
			for _, c := range unionCols {
				row = append(row, tf.feat.Str(c))
			}
			row = append(row, tf.layer)
			combined.Rows = append(combined.Rows, row)
		}
		if err := combined.WriteCSV(opts.OutCSV); err != nil {
			return nil, err
		}
		log.Info("combined attributes written",
			zap.String("path", opts.OutCSV), zap.Int("rows", len(combined.Rows)))
	}

	return res, nil
}

// detectUFColumn finds the state column: an exact uf/sg_uf/sigla_uf/estado
// name first, then any column containing a standalone "uf" token.
func detectUFColumn(cols []string) string {
	if c := matchColumn(cols, `^(uf|sg_uf|sigla_uf|estado)$`); c != "" {
		return c
	}
	return matchColumn(cols, `\buf\b`)
}
