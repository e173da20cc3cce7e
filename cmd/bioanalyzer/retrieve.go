// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/bioanalyzer/internal/format"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <pmid[,pmid...]>",
	Short: "Fetch paper metadata, abstract, and optionally full text",
	Long: `Retrieve fetches bibliographic metadata and the abstract of each paper
from PubMed. With --fulltext it also resolves the PubMed Central copy and
extracts its body text when one exists. Retrieved records are cached.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().Bool("fulltext", false, "also fetch full text from PubMed Central")
	retrieveCmd.Flags().String("format", "table", "output format: table, json, csv, xml, yaml")
	retrieveCmd.Flags().StringP("output", "o", "", "write papers to this file instead of stdout")

	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ids := types.ParsePaperIDs(args)
	if len(ids) == 0 {
		return eris.New("provide one or more PubMed IDs")
	}
	f, err := formatFlag(cmd)
	if err != nil {
		return err
	}
	fulltext, _ := cmd.Flags().GetBool("fulltext")

	a, err := newApp(cmd, func(c *types.Config) {
		if fulltext {
			c.NCBI.UseFullText = true
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	stderr := cmd.ErrOrStderr()
	var papers []types.PaperContent
	for _, id := range ids {
		p := a.retriever.FetchCombined(cmd.Context(), id)
		if p.Empty() {
			fmt.Fprintf(stderr, "%s: not found\n", id)
			continue
		}
		papers = append(papers, p)
	}

	w, closeOut, err := outputTarget(cmd)
	if err != nil {
		return err
	}
	if err := format.Papers(w, f, papers); err != nil {
		closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return eris.Wrap(err, "closing output file")
	}

	if missing := len(ids) - len(papers); missing > 0 {
		return eris.Errorf("%d of %d paper(s) could not be retrieved", missing, len(ids))
	}
	return nil
}
