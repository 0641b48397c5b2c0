package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/shopscan/internal/export"
	"github.com/sells-group/shopscan/internal/ingest"
	"github.com/sells-group/shopscan/internal/pipeline"
)

var (
	analyzeInput       string
	analyzeOutput      string
	analyzeMessages    string
	analyzeOffline     bool
	analyzeLimit       int
	analyzeConcurrency int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a shop roster and write the results",
	Long: `Reads the roster, merges duplicate shops, looks up websites via Google
Places, classifies online ordering and writes one row per shop.

Examples:
  # Full run with outreach messages
  shopscan analyze --input shops.xlsx --output shops_analysis.csv --messages messages.csv

  # No API key needed; every shop is left unverified
  shopscan analyze --input shops.xlsx --output out.xlsx --offline`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		concurrency := cfg.Pipeline.Concurrency
		if cmd.Flags().Changed("concurrency") {
			concurrency = analyzeConcurrency
		}
		if concurrency < 1 {
			return eris.New("analyze: --concurrency must be at least 1")
		}

		in, err := ingest.LoadFile(ctx, analyzeInput, sheetsOrDefault(cfg))
		if err != nil {
			return eris.Wrap(err, "analyze: load input")
		}
		zap.L().Info("loaded input",
			zap.String("input", analyzeInput),
			zap.Strings("sections", in.Sections),
			zap.Int("entries", len(in.Entries)),
			zap.Int("skipped", in.Skipped),
		)

		env, err := initPipeline(ctx, cfg, analyzeOffline, pipeline.Options{
			Concurrency: concurrency,
			Limit:       analyzeLimit,
		})
		if err != nil {
			return eris.Wrap(err, "analyze: init pipeline")
		}
		defer env.Close()

		w, err := export.Open(analyzeOutput, analyzeMessages)
		if err != nil {
			return eris.Wrap(err, "analyze: open output")
		}

		_, runErr := env.Pipeline.Run(ctx, in.Entries, w)
		if err := w.Close(); err != nil && runErr == nil {
			runErr = eris.Wrap(err, "analyze: close output")
		}
		if runErr != nil {
			return runErr
		}

		zap.L().Info("analysis written", zap.String("output", analyzeOutput), zap.String("messages", analyzeMessages))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "roster workbook (.xlsx) or .csv export (required)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "shops_analysis.csv", "analysis output (.csv or .xlsx)")
	analyzeCmd.Flags().StringVar(&analyzeMessages, "messages", "", "also write outreach messages to this file (.csv or .xlsx)")
	analyzeCmd.Flags().BoolVar(&analyzeOffline, "offline", false, "skip website lookups; every shop is unverified")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "max shops to process after dedup (0 = all)")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 1, "shops processed concurrently (overrides pipeline.concurrency)")
	_ = analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}
