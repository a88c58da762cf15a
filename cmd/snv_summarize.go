package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/snv"
)

var (
	summarizeIn     string
	summarizeOutDir string
)

var snvSummarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Roll the segment table up per BR/UF for the case board",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if summarizeIn == "" {
			summarizeIn = filepath.Join(cfg.InterimDir(), "dnit", "snv_trechos_NE_"+cfg.DataRef+"_updated.csv")
		}
		if summarizeOutDir == "" {
			summarizeOutDir = filepath.Join(cfg.ProcessedDir(), "dnit", "summaries")
		}

		rec, closeStore := openRecorder(ctx)
		defer closeStore()
		rec.Start(ctx, "snv summarize", cfg.DataRef)

		res, err := snv.Summarize(snv.SummarizeOptions{
			Input:  summarizeIn,
			OutDir: summarizeOutDir,
		})
		if err != nil {
			rec.Fail(ctx, err)
			return err
		}
		rec.Complete(ctx, res.RowsIn, res.GroupsBRUF+res.GroupsUF, res.Counters())
		return nil
	},
}

func init() {
	snvSummarizeCmd.Flags().StringVar(&summarizeIn, "in-csv", "", "segment CSV (default the updated interim table)")
	snvSummarizeCmd.Flags().StringVar(&summarizeOutDir, "out-dir", "", "summary directory (default <lake>/processed/dnit/summaries)")
	snvCmd.AddCommand(snvSummarizeCmd)
}
