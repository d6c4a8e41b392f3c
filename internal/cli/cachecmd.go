package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or prune the embedding cache",
	}
	cmd.AddCommand(newCacheStatsCmd(e), newCachePruneCmd(e))
	return cmd
}

func newCacheStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry and hit counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := e.openCache()
			if err != nil {
				return err
			}
			defer release()

			st, err := store.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\nHits:    %d\n", st.Entries, st.Hits)
			return nil
		},
	}
}

func newCachePruneCmd(e *env) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete cached vectors older than a given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			store, release, err := e.openCache()
			if err != nil {
				return err
			}
			defer release()

			n, err := store.Prune(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age threshold")
	return cmd
}
