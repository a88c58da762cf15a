package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/consumo"
)

var (
	centroidsMuniGPKG string
	centroidsScores   string
	centroidsOut      string
	centroidsN        int
)

var consumoCentroidsCmd = &cobra.Command{
	Use:   "centroids",
	Short: "Sample the top-N municipality centroids by demand weight",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if centroidsMuniGPKG == "" {
			centroidsMuniGPKG = filepath.Join(cfg.InterimDir(), "ibge", "municipios_NE_2022.gpkg")
		}
		if centroidsScores == "" {
			centroidsScores = filepath.Join(cfg.ProcessedDir(), "ibge", "consumo_municipal_NE_2021.csv")
		}
		if centroidsOut == "" {
			centroidsOut = filepath.Join(cfg.ProcessedDir(), "osrm", "municipios_topN.csv")
		}
		if centroidsN == 0 {
			centroidsN = cfg.OD.TopN
		}

		rec, closeStore := openRecorder(ctx)
		defer closeStore()
		rec.Start(ctx, "consumo centroids", cfg.DataRef)

		res, err := consumo.Centroids(ctx, consumo.CentroidsOptions{
			MuniGPKG: centroidsMuniGPKG,
			ScoreCSV: centroidsScores,
			OutCSV:   centroidsOut,
			N:        centroidsN,
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
	consumoCentroidsCmd.Flags().StringVar(&centroidsMuniGPKG, "muni-gpkg", "", "municipality mesh GeoPackage")
	consumoCentroidsCmd.Flags().StringVar(&centroidsScores, "scores", "", "consumption score CSV")
	consumoCentroidsCmd.Flags().StringVar(&centroidsOut, "out", "", "centroid sample CSV (default <lake>/processed/osrm/municipios_topN.csv)")
	consumoCentroidsCmd.Flags().IntVar(&centroidsN, "n", 0, "sample size (default from config)")
	consumoCmd.AddCommand(consumoCentroidsCmd)
}
