package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCmd(dbDir *string) *cobra.Command {
	var (
		namespace string
		explain   bool
		limit     int
		skip      int
		format    string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a query against the index and print matching ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(*dbDir)
			if err != nil {
				return err
			}
			defer e.Close()

			query := args[0]
			if explain {
				expl, err := e.Explain(query)
				if err != nil {
					return fmt.Errorf("explain query: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), expl)
				return nil
			}

			hits, err := e.Search(query)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			ids := hits.Slice()
			if skip > 0 {
				if skip >= len(ids) {
					ids = nil
				} else {
					ids = ids[skip:]
				}
			}
			if limit > 0 && limit < len(ids) {
				ids = ids[:limit]
			}
			return printIDs(cmd, format, ids)
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "tag namespace to scope in: keywords to (reserved for future use)")
	cmd.Flags().BoolVar(&explain, "explain", false, "print the expanded operator tree instead of running the query")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of ids to print (0 means unlimited)")
	cmd.Flags().IntVar(&skip, "skip", 0, "number of leading ids to skip")
	cmd.Flags().StringVar(&format, "format", "text", `output format: "text" or "json"`)
	return cmd
}

func printIDs(cmd *cobra.Command, format string, ids []uint32) error {
	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		return enc.Encode(ids)
	case "text", "":
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	default:
		return fmt.Errorf("unknown --format %q (want text or json)", format)
	}
}
