package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Materialize the configured raw sources under the data lake",
	Long:  "Downloads the DNIT and IBGE inputs listed in config (fetch.sources) into data/raw, skipping files already present and extracting zip bundles.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if len(cfg.Fetch.Sources) == 0 {
			return eris.New("fetch: no sources configured (fetch.sources)")
		}

		sources := make([]fetcher.Source, len(cfg.Fetch.Sources))
		for i, s := range cfg.Fetch.Sources {
			dest := s.Dest
			if dest != "" && !filepath.IsAbs(dest) {
				dest = filepath.Join(cfg.RawDir(), dest)
			}
			sources[i] = fetcher.Source{
				Name:  s.Name,
				URL:   s.URL,
				Dest:  dest,
				Unzip: s.Unzip,
			}
		}

		rec, closeStore := openRecorder(ctx)
		defer closeStore()
		rec.Start(ctx, "fetch", cfg.DataRef)

		res, err := fetcher.Materialize(ctx, fetcher.MaterializeOptions{
			Sources:     sources,
			Concurrency: cfg.Fetch.Concurrency,
		})
		if err != nil {
			rec.Fail(ctx, err)
			return err
		}
		rec.Complete(ctx, int64(len(sources)), res.Downloaded, res.Counters())
		return nil
	},
}

func init() { rootCmd.AddCommand(fetchCmd) }
