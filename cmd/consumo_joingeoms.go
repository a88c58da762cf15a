package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/consumo"
)

var (
	joinGeomsMuniGPKG string
	joinGeomsScores   string
	joinGeomsOut      string
)

var consumoJoinGeomsCmd = &cobra.Command{
	Use:   "join-geoms",
	Short: "Join the score table onto the municipality mesh",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if joinGeomsMuniGPKG == "" {
			joinGeomsMuniGPKG = filepath.Join(cfg.InterimDir(), "ibge", "municipios_NE_2022.gpkg")
		}
		if joinGeomsScores == "" {
			joinGeomsScores = filepath.Join(cfg.ProcessedDir(), "ibge", "consumo_municipal_NE_2021.csv")
		}
		if joinGeomsOut == "" {
			joinGeomsOut = filepath.Join(cfg.ProcessedDir(), "ibge", "consumo_municipal_NE_2021.gpkg")
		}

		rec, closeStore := openRecorder(ctx)
		defer closeStore()
		rec.Start(ctx, "consumo join-geoms", cfg.DataRef)

		res, err := consumo.JoinGeoms(ctx, consumo.JoinGeomsOptions{
			MuniGPKG: joinGeomsMuniGPKG,
			ScoreCSV: joinGeomsScores,
			OutGPKG:  joinGeomsOut,
		})
		if err != nil {
			rec.Fail(ctx, err)
			return err
		}
		rec.Complete(ctx, res.Features, res.Features, res.Counters())
		return nil
	},
}

func init() {
	consumoJoinGeomsCmd.Flags().StringVar(&joinGeomsMuniGPKG, "muni-gpkg", "", "municipality mesh GeoPackage")
	consumoJoinGeomsCmd.Flags().StringVar(&joinGeomsScores, "scores", "", "consumption score CSV")
	consumoJoinGeomsCmd.Flags().StringVar(&joinGeomsOut, "out-gpkg", "", "thematic GeoPackage")
	consumoCmd.AddCommand(consumoJoinGeomsCmd)
}
