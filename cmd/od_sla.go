package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/od"
)

var (
	slaMuniGPKG   string
	slaScores     string
	slaOutOD      string
	slaOutSummary string
	slaOSRM       string
	slaN          int
	slaChunk      int
)

var odSLACmd = &cobra.Command{
	Use:   "sla",
	Short: "Demand-weighted SLA over the top-N municipalities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if slaMuniGPKG == "" {
			slaMuniGPKG = filepath.Join(cfg.InterimDir(), "ibge", "municipios_NE_2022.gpkg")
		}
		if slaScores == "" {
			slaScores = filepath.Join(cfg.ProcessedDir(), "ibge", "consumo_municipal_NE_2021.csv")
		}
		if slaOutOD == "" {
			slaOutOD = filepath.Join(cfg.ProcessedDir(), "osrm", "od_municipios_topN_recife_salvador.csv")
		}
		if slaOutSummary == "" {
			slaOutSummary = filepath.Join(cfg.ProcessedDir(), "osrm", "sla_ponderado_topN_summary.csv")
		}
		if slaN == 0 {
			slaN = cfg.OD.TopN
		}
		if slaChunk == 0 {
			slaChunk = cfg.OSRM.Chunk
		}

		rec, closeStore := openRecorder(ctx)
		defer closeStore()
		rec.Start(ctx, "od sla", cfg.DataRef)

		res, err := od.SLA(ctx, od.SLAOptions{
			Client:     osrmClient(slaOSRM),
			Origins:    odOrigins(),
			MuniGPKG:   slaMuniGPKG,
			ScoreCSV:   slaScores,
			OutOD:      slaOutOD,
			OutSummary: slaOutSummary,
			TopN:       slaN,
			Chunk:      slaChunk,
		})
		if err != nil {
			rec.Fail(ctx, err)
			return err
		}
		rec.Complete(ctx, res.RowsIn, res.Selected, res.Counters())
		return nil
	},
}

func init() {
	odSLACmd.Flags().StringVar(&slaMuniGPKG, "muni-gpkg", "", "municipality mesh GeoPackage")
	odSLACmd.Flags().StringVar(&slaScores, "scores", "", "consumption score CSV")
	odSLACmd.Flags().StringVar(&slaOutOD, "out-od", "", "per-municipality OD CSV")
	odSLACmd.Flags().StringVar(&slaOutSummary, "out-summary", "", "per-origin summary CSV")
	odSLACmd.Flags().StringVar(&slaOSRM, "osrm", "", "OSRM base URL (default from config)")
	odSLACmd.Flags().IntVar(&slaN, "n", 0, "top municipalities by demand weight (default from config)")
	odSLACmd.Flags().IntVar(&slaChunk, "chunk", 0, "destination chunk per /table call (default from config)")
	odCmd.AddCommand(odSLACmd)
}
