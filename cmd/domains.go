package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/shopscan/internal/classify"
)

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "Print the effective third-party ordering domains",
	RunE: func(cmd *cobra.Command, _ []string) error {
		set, err := classify.FromConfig(cfg.Classify)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# match policy: %s\n", set.Policy())
		for _, d := range set.Domains() {
			fmt.Fprintln(out, d)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(domainsCmd)
}
