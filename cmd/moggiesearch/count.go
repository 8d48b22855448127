package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCountCmd(dbDir *string) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "count <query>",
		Short: "Print the number of messages a query matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(*dbDir)
			if err != nil {
				return err
			}
			defer e.Close()

			hits, err := e.Search(args[0])
			if err != nil {
				return fmt.Errorf("count: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hits.Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "tag namespace to scope in: keywords to (reserved for future use)")
	return cmd
}
