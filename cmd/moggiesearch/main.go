// Command moggiesearch is a thin cobra CLI over search.Engine, concretizing
// spec §6's CLI surface: search, tag, count, reindex. Grounded on the
// teacher's cobra root-command/subcommand registration shape and its
// fmt.Errorf("...: %w", err) wrapping idiom (cmd/headers/download), rebuilt
// from scratch since the teacher's command bodies are header-sync specific.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dbDir string

	root := &cobra.Command{
		Use:           "moggiesearch",
		Short:         "Query and maintain a moggie mail-search index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbDir, "db", "./moggiesearch.db", "record store directory")

	root.AddCommand(
		newSearchCmd(&dbDir),
		newTagCmd(&dbDir),
		newCountCmd(&dbDir),
		newReindexCmd(&dbDir),
	)
	return root
}
