package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/shopscan/internal/dedup"
	"github.com/sells-group/shopscan/internal/ingest"
)

var ingestInput string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Parse and dedup a roster without lookups",
	Long:  "Reads the roster and prints the canonical shop records as JSON. No website lookups are made.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		in, err := ingest.LoadFile(cmd.Context(), ingestInput, sheetsOrDefault(cfg))
		if err != nil {
			return eris.Wrap(err, "ingest: load input")
		}

		res := dedup.New(cfg.Ingest.PhoneRegion).Dedup(in.Entries)
		zap.L().Info("ingest: dedup complete",
			zap.Int("entries", len(in.Entries)),
			zap.Int("records", len(res.Records)),
			zap.Int("merged", res.Merged),
			zap.Int("skipped", in.Skipped),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res.Records), "ingest: encode records")
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestInput, "input", "", "roster workbook (.xlsx) or .csv export (required)")
	_ = ingestCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(ingestCmd)
}
