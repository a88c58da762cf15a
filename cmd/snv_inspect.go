package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/snv"
)

var (
	snvInspectGPKG    string
	snvInspectOutGPKG string
	snvInspectOutCSV  string
)

var snvInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect an SNV revision-diffs GeoPackage and filter it to the NE",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rec, closeStore := openRecorder(ctx)
		defer closeStore()
		rec.Start(ctx, "snv inspect", cfg.DataRef)

		res, err := snv.Inspect(ctx, snv.InspectOptions{
			GPKG:    snvInspectGPKG,
			OutGPKG: snvInspectOutGPKG,
			OutCSV:  snvInspectOutCSV,
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
	snvInspectCmd.Flags().StringVar(&snvInspectGPKG, "gpkg", "", "revision-diffs GeoPackage (required)")
	snvInspectCmd.Flags().StringVar(&snvInspectOutGPKG, "out-gpkg", "", "write the NE-filtered layers here")
	snvInspectCmd.Flags().StringVar(&snvInspectOutCSV, "out-csv", "", "write the combined attribute table here")
	_ = snvInspectCmd.MarkFlagRequired("gpkg")
	snvCmd.AddCommand(snvInspectCmd)
}
