package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReindexCmd(dbDir *string) *cobra.Command {
	var minHits int

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the partial-match wordblob from the current index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(*dbDir)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.Reindex(minHits)
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d keyword occurrence(s)\n", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&minHits, "min-hits", 0, "partial-match minimum-hits setting for this run; words are not filtered by hit count (0 keeps the configured value)")
	return cmd
}
