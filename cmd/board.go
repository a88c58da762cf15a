package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/board"
)

var (
	boardSummary     string
	boardSLA         string
	boardOut         string
	boardOD          string
	boardMetricsJSON string
	boardChartsDir   string
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Assemble the Recife vs Salvador comparison board",
	Long: "Aggregates the per-UF highway summary over each candidate's influence states, " +
		"appends SLA annex rows when a summary is available, and optionally condenses the " +
		"OD features into summary metrics and charts.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if boardSummary == "" {
			boardSummary = filepath.Join(cfg.ProcessedDir(), "dnit", "summaries", "snv_summary_UF.csv")
		}
		if boardSLA == "" {
			boardSLA = filepath.Join(cfg.ProcessedDir(), "osrm", "sla_ponderado_topN_summary.csv")
		}
		if boardOut == "" {
			boardOut = filepath.Join(cfg.ProcessedDir(), "case_board_recife_salvador.csv")
		}

		rec, closeStore := openRecorder(ctx)
		defer closeStore()
		rec.Start(ctx, "board", cfg.DataRef)

		res, err := board.Build(board.Options{
			SummaryUF:   boardSummary,
			SLASummary:  boardSLA,
			OutCSV:      boardOut,
			Influence:   cfg.Board.Influence,
			ODCSV:       boardOD,
			MetricsJSON: boardMetricsJSON,
			ChartsDir:   boardChartsDir,
		})
		if err != nil {
			rec.Fail(ctx, err)
			return err
		}
		rec.Complete(ctx, res.Indicators, res.Indicators, res.Counters())
		return nil
	},
}

func init() {
	boardCmd.Flags().StringVar(&boardSummary, "summary", "", "per-UF summary CSV (default <lake>/processed/dnit/summaries/snv_summary_UF.csv)")
	boardCmd.Flags().StringVar(&boardSLA, "sla", "", "SLA summary CSV for the annex rows (default <lake>/processed/osrm/sla_ponderado_topN_summary.csv)")
	boardCmd.Flags().StringVar(&boardOut, "out", "", "board CSV (default <lake>/processed/case_board_recife_salvador.csv)")
	boardCmd.Flags().StringVar(&boardOD, "od", "", "per-municipality OD CSV for the metrics supplement")
	boardCmd.Flags().StringVar(&boardMetricsJSON, "metrics-json", "", "write summary metrics here")
	boardCmd.Flags().StringVar(&boardChartsDir, "charts-dir", "", "render SVG charts here")
	rootCmd.AddCommand(boardCmd)
}
