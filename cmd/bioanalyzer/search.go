// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search PubMed and print matching PMIDs",
	Long: `Search runs a PubMed query through esearch and prints one PMID per line,
so the output can be piped into analyze:

  bioanalyzer analyze $(bioanalyzer search "gut microbiome 16S" --max 5)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max", 10, "maximum number of PMIDs to return")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	limit, _ := cmd.Flags().GetInt("max")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ids, err := a.retriever.Search(cmd.Context(), query, limit)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No papers matched.")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
