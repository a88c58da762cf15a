package main

import (
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/snv"
)

var (
	applyDiffsCSVIn   string
	applyDiffsGPKG    string
	applyDiffsCSVOut  string
	applyDiffsGPKGOut string
	applyDiffsCSVKey  string
	applyDiffsDiffKey string
	applyDiffsKmTol   float64
)

var snvApplyDiffsCmd = &cobra.Command{
	Use:   "apply-diffs",
	Short: "Reconcile the interim table with a revision-diffs GeoPackage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if applyDiffsCSVIn == "" {
			applyDiffsCSVIn = filepath.Join(cfg.InterimDir(), "dnit", "snv_trechos_NE_"+cfg.DataRef+".csv")
		}
		if applyDiffsCSVOut == "" {
			applyDiffsCSVOut = updatedName(applyDiffsCSVIn)
		}
		if applyDiffsKmTol == 0 {
			applyDiffsKmTol = cfg.Join.KmTol
		}

		rec, closeStore := openRecorder(ctx)
		defer closeStore()
		rec.Start(ctx, "snv apply-diffs", cfg.DataRef)

		res, err := snv.ApplyDiffs(ctx, snv.ApplyDiffsOptions{
			CSVIn:   applyDiffsCSVIn,
			Diffs:   applyDiffsGPKG,
			CSVOut:  applyDiffsCSVOut,
			GPKGOut: applyDiffsGPKGOut,
			CSVKey:  applyDiffsCSVKey,
			DiffKey: applyDiffsDiffKey,
			KmTol:   applyDiffsKmTol,
		})
		if err != nil {
			rec.Fail(ctx, err)
			return err
		}
		rec.Complete(ctx, res.RowsIn, res.RowsOut, res.Counters())
		return nil
	},
}

// updatedName derives the default output beside the input, so
// snv_trechos_NE_2025-07.csv becomes snv_trechos_NE_2025-07_updated.csv.
func updatedName(in string) string {
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + "_updated" + ext
}

func init() {
	snvApplyDiffsCmd.Flags().StringVar(&applyDiffsCSVIn, "csv-in", "", "interim segment CSV (default <lake>/interim/dnit/snv_trechos_NE_<data_ref>.csv)")
	snvApplyDiffsCmd.Flags().StringVar(&applyDiffsGPKG, "gpkg-diff", "", "revision-diffs GeoPackage (required)")
	snvApplyDiffsCmd.Flags().StringVar(&applyDiffsCSVOut, "csv-out", "", "updated CSV (default beside the input with an _updated suffix)")
	snvApplyDiffsCmd.Flags().StringVar(&applyDiffsGPKGOut, "gpkg-out", "", "write matched segment geometries here")
	snvApplyDiffsCmd.Flags().StringVar(&applyDiffsCSVKey, "csv-key", "", "force the CSV join key column")
	snvApplyDiffsCmd.Flags().StringVar(&applyDiffsDiffKey, "diff-key", "", "force the diff join key column")
	snvApplyDiffsCmd.Flags().Float64Var(&applyDiffsKmTol, "km-tol", 0, "kilometer tolerance for the interval fallback (default from config)")
	_ = snvApplyDiffsCmd.MarkFlagRequired("gpkg-diff")
	snvCmd.AddCommand(snvApplyDiffsCmd)
}
