package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/consumo"
)

var (
	scorePIB      string
	scorePop      string
	scoreRenda    string
	scoreOut      string
	scoreWithGeom bool
	scoreMuniGPKG string
	scoreOutGPKG  string
)

var consumoScoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Build the municipal consumption score and demand weights",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ibgeInterim := filepath.Join(cfg.InterimDir(), "ibge")
		ibgeProcessed := filepath.Join(cfg.ProcessedDir(), "ibge")
		if scorePIB == "" {
			scorePIB = filepath.Join(ibgeInterim, "pib_municipal_2021.csv")
		}
		if scorePop == "" {
			scorePop = filepath.Join(ibgeInterim, "populacao_municipal_nordeste_2021.csv")
		}
		if scoreRenda == "" {
			scoreRenda = filepath.Join(ibgeInterim, "renda_per_capita_uf_2024.csv")
		}
		if scoreOut == "" {
			scoreOut = filepath.Join(ibgeProcessed, "consumo_municipal_NE_2021.csv")
		}
		if scoreMuniGPKG == "" {
			scoreMuniGPKG = filepath.Join(ibgeInterim, "municipios_NE_2022.gpkg")
		}
		if scoreOutGPKG == "" {
			scoreOutGPKG = filepath.Join(ibgeProcessed, "consumo_municipal_NE_2021.gpkg")
		}

		rec, closeStore := openRecorder(ctx)
		defer closeStore()
		rec.Start(ctx, "consumo score", cfg.DataRef)

		res, err := consumo.Score(ctx, consumo.ScoreOptions{
			PIBCSV:   scorePIB,
			PopCSV:   scorePop,
			RendaCSV: scoreRenda,
			OutCSV:   scoreOut,
			WithGeom: scoreWithGeom,
			MuniGPKG: scoreMuniGPKG,
			OutGPKG:  scoreOutGPKG,
		})
		if err != nil {
			rec.Fail(ctx, err)
			return err
		}
		rec.Complete(ctx, res.Rows, res.Rows, res.Counters())
		return nil
	},
}

func init() {
	consumoScoreCmd.Flags().StringVar(&scorePIB, "pib", "", "municipal GDP-per-capita CSV (default under <lake>/interim/ibge)")
	consumoScoreCmd.Flags().StringVar(&scorePop, "pop", "", "municipal population CSV (default under <lake>/interim/ibge)")
	consumoScoreCmd.Flags().StringVar(&scoreRenda, "renda", "", "per-UF income CSV (default under <lake>/interim/ibge)")
	consumoScoreCmd.Flags().StringVar(&scoreOut, "out", "", "score CSV (default <lake>/processed/ibge/consumo_municipal_NE_2021.csv)")
	consumoScoreCmd.Flags().BoolVar(&scoreWithGeom, "with-geom", false, "also write the consumo_ne thematic GeoPackage layer")
	consumoScoreCmd.Flags().StringVar(&scoreMuniGPKG, "muni-gpkg", "", "municipality mesh for --with-geom")
	consumoScoreCmd.Flags().StringVar(&scoreOutGPKG, "out-gpkg", "", "thematic GeoPackage for --with-geom")
	consumoCmd.AddCommand(consumoScoreCmd)
}
