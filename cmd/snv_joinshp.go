package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/snv"
)

var (
	joinShpCSV   string
	joinShpBases string
	joinShpRotas string
	joinShpOut   string
	joinShpKmTol float64
	joinShpSRID  int
)

var snvJoinShpCmd = &cobra.Command{
	Use:   "join-shp",
	Short: "Join the segment table onto the official SNV shapefiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if joinShpCSV == "" {
			joinShpCSV = filepath.Join(cfg.InterimDir(), "dnit", "snv_trechos_NE_"+cfg.DataRef+"_updated.csv")
		}
		if joinShpKmTol == 0 {
			joinShpKmTol = cfg.Join.KmTol
		}
		if joinShpSRID == 0 {
			joinShpSRID = cfg.Join.TargetSRID
		}

		rec, closeStore := openRecorder(ctx)
		defer closeStore()
		rec.Start(ctx, "snv join-shp", cfg.DataRef)

		res, err := snv.JoinShapefiles(ctx, snv.JoinShapefilesOptions{
			SNVCSV:     joinShpCSV,
			Bases:      joinShpBases,
			Rotas:      joinShpRotas,
			OutGPKG:    joinShpOut,
			KmTol:      joinShpKmTol,
			TargetSRID: joinShpSRID,
		})
		if err != nil {
			rec.Fail(ctx, err)
			return err
		}
		rec.Complete(ctx, res.RowsIn, res.RowsIn, res.Counters())
		return nil
	},
}

func init() {
	snvJoinShpCmd.Flags().StringVar(&joinShpCSV, "snv-csv", "", "segment CSV (default the updated interim table)")
	snvJoinShpCmd.Flags().StringVar(&joinShpBases, "shp-bases", "", "SNV bases shapefile")
	snvJoinShpCmd.Flags().StringVar(&joinShpRotas, "shp-rotas", "", "SNV rotas shapefile")
	snvJoinShpCmd.Flags().StringVar(&joinShpOut, "out-gpkg", "", "joined layers GeoPackage (required)")
	snvJoinShpCmd.Flags().Float64Var(&joinShpKmTol, "km-tol", 0, "kilometer tolerance for interval joins (default from config)")
	snvJoinShpCmd.Flags().IntVar(&joinShpSRID, "target-srid", 0, "SRID stamped on output layers (default from config)")
	_ = snvJoinShpCmd.MarkFlagRequired("out-gpkg")
	snvCmd.AddCommand(snvJoinShpCmd)
}
