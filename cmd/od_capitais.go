package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/od"
)

var (
	capitaisOut  string
	capitaisOSRM string
)

var odCapitaisCmd = &cobra.Command{
	Use:   "capitais",
	Short: "Travel times from the candidate cities to every NE capital",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if capitaisOut == "" {
			capitaisOut = filepath.Join(cfg.ProcessedDir(), "osrm", "od_capitais_recife_salvador.csv")
		}

		rec, closeStore := openRecorder(ctx)
		defer closeStore()
		rec.Start(ctx, "od capitais", cfg.DataRef)

		res, err := od.Capitais(ctx, od.CapitaisOptions{
			Client:  osrmClient(capitaisOSRM),
			Origins: odOrigins(),
			OutCSV:  capitaisOut,
		})
		if err != nil {
			rec.Fail(ctx, err)
			return err
		}
		rec.Complete(ctx, res.Pairs, res.Pairs, res.Counters())
		return nil
	},
}

func init() {
	odCapitaisCmd.Flags().StringVar(&capitaisOut, "out", "", "OD table CSV (default <lake>/processed/osrm/od_capitais_recife_salvador.csv)")
	odCapitaisCmd.Flags().StringVar(&capitaisOSRM, "osrm", "", "OSRM base URL (default from config)")
	odCmd.AddCommand(odCapitaisCmd)
}
