package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/shopscan/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "shopscan",
	Short: "Pizzeria roster analysis and outreach drafting",
	Long:  "Reads a pizzeria roster workbook, merges duplicate shops, looks up each shop's website, classifies its online ordering and drafts outreach messages.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
