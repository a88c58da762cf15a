package snv

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
	"github.com/juanocv/magalu-cd-location/internal/normalize"
)

// PrepareOptions configures the raw SNV table normalization.
type PrepareOptions struct {
	Input     string    // raw DNIT table (CSV or XLSX)
	Output    string    // interim CSV destination
	ColumnMap ColumnMap // optional header overrides
	DataRef   string    // reference period stamped on every row, e.g. "2025-07"
}

// PrepareResult reports what the normalization kept and dropped.
type PrepareResult struct {
	RowsIn     int64
	RowsOut    int64
	DroppedUF  int64 // states outside the nine northeastern UFs
	DroppedBR  int64 // no parseable BR number
	DroppedExt int64 // zero or unknown extension
	Filled     map[string]int64  // non-empty counts per QC column, over kept rows
	Mapping    map[string]string // interim field -> detected source header
}

// Counters flattens the result for the run log.
func (r *PrepareResult) Counters() map[string]int64 {
	c := map[string]int64{
		"dropped_uf":     r.DroppedUF,
		"dropped_br":     r.DroppedBR,
		"dropped_ext_km": r.DroppedExt,
	}
	for col, n := range r.Filled {
		c["filled_"+col] = n
	}
	return c
}

// Prepare reads the raw SNV table, detects its columns, normalizes types
// and derived fields, keeps northeastern segments with a usable highway
// number and positive extension, and writes the interim CSV.
func Prepare(opts PrepareOptions) (*PrepareResult, error) {
	log := zap.L().With(zap.String("component", "snv.prepare"))

	raw, err := fetcher.ReadTable(opts.Input)
	if err != nil {
		return nil, err
	}

	cols, err := DetectColumns(raw, opts.ColumnMap)
	if err != nil {
		return nil, err
	}
	admCol := raw.DetectCol(`administr`)

	res := &PrepareResult{
		RowsIn:  int64(len(raw.Rows)),
		Filled:  make(map[string]int64),
		Mapping: make(map[string]string, len(cols)),
	}
	for field, idx := range cols {
		if idx >= 0 {
			res.Mapping[field] = raw.Header[idx]
		}
	}
	log.Info("detected column mapping", zap.Any("columns", res.Mapping))

	out := &fetcher.Table{Header: InterimColumns}
	for i := range raw.Rows {
		t := Trecho{
			IDTrecho:   normalize.Clean(raw.Cell(i, cols["id_trecho"])),
			BR:         normalize.Clean(raw.Cell(i, cols["br"])),
			UF:         normalize.UF(raw.Cell(i, cols["uf"])),
			TrechoDesc: normalize.Clean(raw.Cell(i, cols["trecho_desc"])),
			Localidade: normalize.Clean(raw.Cell(i, cols["localidade"])),
			KmIni:      normalize.ParseNumber(raw.Cell(i, cols["km_ini"])),
			KmFim:      normalize.ParseNumber(raw.Cell(i, cols["km_fim"])),
			ExtKm:      normalize.ParseNumber(raw.Cell(i, cols["ext_km"])),
			Situacao:   normalize.Clean(raw.Cell(i, cols["situacao"])),
			Jurisdicao: normalize.Clean(raw.Cell(i, cols["jurisdicao"])),
			DataRef:    opts.DataRef,
		}
		t.BRPad = normalize.PadBR(t.BR)
		if math.IsNaN(t.ExtKm) && !math.IsNaN(t.KmIni) && !math.IsNaN(t.KmFim) {
			t.ExtKm = math.Abs(t.KmFim - t.KmIni)
		}
		t.Classe = normalize.Clean(raw.Cell(i, cols["classe"]))
		if t.Classe == "" {
			t.Classe = inferClasse(t.BR)
		}
		t.Sentido = inferSentido(t.KmIni, t.KmFim)
		t.Concessao = inferConcessao(raw.Cell(i, admCol))

		switch {
		case !normalize.Northeast(t.UF):
			res.DroppedUF++
			continue
		case t.BRPad == "":
			res.DroppedBR++
			continue
		case math.IsNaN(t.ExtKm) || t.ExtKm <= 0:
			res.DroppedExt++
			continue
		}

		t.ChaveHint = ChaveTrechoHint(t.BRPad, t.UF, t.KmIni)
		out.Rows = append(out.Rows, t.row())

		for _, f := range []struct{ col, val string }{
			{"id_trecho", t.IDTrecho}, {"localidade", t.Localidade},
			{"situacao", t.Situacao}, {"classe", t.Classe},
			{"sentido", t.Sentido}, {"concessao", t.Concessao},
		} {
			if f.val != "" {
				res.Filled[f.col]++
			}
		}
	}
	res.RowsOut = int64(len(out.Rows))

	if err := out.WriteCSV(opts.Output); err != nil {
		return nil, err
	}

	log.Info("interim table written",
		zap.String("path", opts.Output),
		zap.Int64("rows_in", res.RowsIn),
		zap.Int64("rows_out", res.RowsOut),
		zap.Int64("dropped_uf", res.DroppedUF),
		zap.Int64("dropped_br", res.DroppedBR),
		zap.Int64("dropped_ext_km", res.DroppedExt),
	)
	return res, nil
}

// inferClasse maps the first digit of the BR number to the national
// classification: 0xx radial, 1xx longitudinal, 2xx transversal,
// 3xx diagonal, 4xx ligação.
func inferClasse(br string) string {
	num := normalize.BRNumber(br)
	if num == "" {
		return ""
	}
	switch num[0] {
	case '0':
		return "Radial"
	case '1':
		return "Longitudinal"
	case '2':
		return "Transversal"
	case '3':
		return "Diagonal"
	case '4':
		return "Ligação"
	}
	return ""
}

// inferSentido derives the stationing direction from the kilometer bounds.
func inferSentido(kmIni, kmFim float64) string {
	if math.IsNaN(kmIni) || math.IsNaN(kmFim) {
		return ""
	}
	if kmFim >= kmIni {
		return "km_crescente"
	}
	return "km_decrescente"
}

// inferConcessao flags segments whose administration mentions a concession
// or convênio arrangement.
func inferConcessao(administration string) string {
	adm := strings.ToLower(administration)
	if strings.Contains(adm, "concessão") || strings.Contains(adm, "convênio") {
		return "sim"
	}
	return "nao"
}
