package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/shopscan/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent website lookup cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(cmd, "prune", store.Store.DeleteExpired)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cache entry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(cmd, "clear", store.Store.Clear)
	},
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the number of cached lookups",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(cmd, "status", store.Store.Count)
	},
}

// withCache opens the configured store, applies op and reports the count it
// returns.
func withCache(cmd *cobra.Command, name string, op func(store.Store, context.Context) (int, error)) error {
	ctx := cmd.Context()
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return eris.Wrapf(err, "cache %s: open store", name)
	}
	if st == nil {
		return eris.Errorf("cache %s: no store configured (set store.driver)", name)
	}
	defer st.Close() //nolint:errcheck

	n, err := op(st, ctx)
	if err != nil {
		return eris.Wrapf(err, "cache %s", name)
	}
	zap.L().Info("cache: done", zap.String("op", name), zap.Int("entries", n))
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries\n", name, n)
	return nil
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd, cacheClearCmd, cacheStatusCmd)
	rootCmd.AddCommand(cacheCmd)
}
