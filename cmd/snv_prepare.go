package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/snv"
)

var (
	snvPrepareIn      string
	snvPrepareOut     string
	snvPrepareColumns string
)

var snvPrepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Normalize a raw SNV bulletin into the interim segment table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if snvPrepareIn == "" {
			snvPrepareIn = filepath.Join(cfg.RawDir(), "dnit", "tabela_snv_202507A.csv")
		}
		if snvPrepareOut == "" {
			snvPrepareOut = filepath.Join(cfg.InterimDir(), "dnit", "snv_trechos_NE_"+cfg.DataRef+".csv")
		}

		var colMap snv.ColumnMap
		if snvPrepareColumns != "" {
			m, err := snv.LoadColumnMap(snvPrepareColumns)
			if err != nil {
				return err
			}
			colMap = m
		}

		rec, closeStore := openRecorder(ctx)
		defer closeStore()
		rec.Start(ctx, "snv prepare", cfg.DataRef)

		res, err := snv.Prepare(snv.PrepareOptions{
			Input:     snvPrepareIn,
			Output:    snvPrepareOut,
			ColumnMap: colMap,
			DataRef:   cfg.DataRef,
		})
		if err != nil {
			rec.Fail(ctx, err)
			return err
		}
		rec.Complete(ctx, res.RowsIn, res.RowsOut, res.Counters())
		return nil
	},
}

func init() {
	snvPrepareCmd.Flags().StringVar(&snvPrepareIn, "in", "", "raw SNV table, CSV or XLSX (default <lake>/raw/dnit/tabela_snv_202507A.csv)")
	snvPrepareCmd.Flags().StringVar(&snvPrepareOut, "out", "", "interim CSV (default <lake>/interim/dnit/snv_trechos_NE_<data_ref>.csv)")
	snvPrepareCmd.Flags().StringVar(&snvPrepareColumns, "columns", "", "YAML column-override map")
	snvCmd.AddCommand(snvPrepareCmd)
}
