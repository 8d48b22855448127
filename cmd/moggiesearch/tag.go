package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BjarniRunar/moggie/search"
)

func newTagCmd(dbDir *string) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "tag [+in:foo] [-in:bar] -- <query>",
		Short: "Add or remove tags on every message matched by a query",
		Long: "tag applies a batch of +keyword/-keyword mutations (spec's mutate) " +
			"to the set of messages matched by <query>. Ops must appear before " +
			"the \"--\" separator, the query after it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dash := cmd.ArgsLenAtDash()
			if dash < 0 {
				return fmt.Errorf("tag: missing \"--\" separator before the query")
			}
			opArgs, queryArgs := args[:dash], args[dash:]
			if len(queryArgs) != 1 {
				return fmt.Errorf("tag: expected exactly one query after \"--\", got %d", len(queryArgs))
			}
			ops := make([]search.MutateOp, 0, len(opArgs))
			for _, raw := range opArgs {
				if len(raw) < 2 || (raw[0] != '+' && raw[0] != '-') {
					return fmt.Errorf("tag: malformed op %q (want +keyword or -keyword)", raw)
				}
				ops = append(ops, search.MutateOp{Op: raw[0], Keyword: strings.TrimSpace(raw[1:])})
			}
			if len(ops) == 0 {
				return fmt.Errorf("tag: no +/- ops given")
			}

			e, err := openEngine(*dbDir)
			if err != nil {
				return err
			}
			defer e.Close()

			opts := search.Options{TagNamespace: namespace}
			scope, err := e.Search(queryArgs[0])
			if err != nil {
				return fmt.Errorf("tag: resolve query scope: %w", err)
			}
			res, err := e.Mutate(scope, ops, opts)
			if err != nil {
				return fmt.Errorf("tag: mutate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d, history id %d, %d keyword(s) touched\n",
				res.Version, res.HistoryID, len(res.Touched))
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "tag namespace +/- ops are scoped to")
	return cmd
}
