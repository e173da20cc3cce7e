// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/bioanalyzer/internal/analyze"
	"github.com/pdiddy/bioanalyzer/internal/format"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <pmid[,pmid...]>",
	Short: "Assess papers for the six curation fields",
	Long: `Analyze retrieves each paper and reports, for every curation field, whether
it is PRESENT, PARTIALLY_PRESENT, or ABSENT, with the extracted value and a
confidence score. Identifiers may be comma or space separated.

Cached analyses younger than the cache validity are served without
contacting NCBI or the model; --force skips the cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("format", "table", "output format: table, json, csv, xml, yaml")
	analyzeCmd.Flags().StringP("output", "o", "", "write results to this file instead of stdout")
	analyzeCmd.Flags().String("mode", "", "extraction mode: simple (one call per field) or combined (one call per paper)")
	analyzeCmd.Flags().Bool("force", false, "ignore cached analyses")
	analyzeCmd.Flags().Bool("validate", false, "attach keyword validation to each field")
	analyzeCmd.Flags().Bool("no-llm", false, "use keyword extraction only")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ids := types.ParsePaperIDs(args)
	if len(ids) == 0 {
		return eris.New("provide one or more PubMed IDs")
	}
	f, err := formatFlag(cmd)
	if err != nil {
		return err
	}
	rawMode, _ := cmd.Flags().GetString("mode")
	mode, err := parseMode(rawMode)
	if err != nil {
		return err
	}
	opts := analyze.Options{Mode: mode}
	opts.Force, _ = cmd.Flags().GetBool("force")
	opts.Validate, _ = cmd.Flags().GetBool("validate")
	opts.NoLLM, _ = cmd.Flags().GetBool("no-llm")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	batch := a.analyzer.AnalyzeBatch(cmd.Context(), ids, opts)

	stderr := cmd.ErrOrStderr()
	for _, it := range batch.Items {
		switch it.Outcome.Kind {
		case analyze.NotFound:
			fmt.Fprintf(stderr, "%s: paper not found or has no retrievable text\n", it.PMID)
		case analyze.Failed:
			fmt.Fprintf(stderr, "%s: analysis failed: %v\n", it.PMID, it.Outcome.Err)
		}
	}

	w, closeOut, err := outputTarget(cmd)
	if err != nil {
		return err
	}
	if err := format.Results(w, f, batch.Results()); err != nil {
		closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return eris.Wrap(err, "closing output file")
	}
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		fmt.Fprintf(stderr, "Wrote %d result(s) to %s\n", batch.Found, path)
	}

	if batch.HasFailures() {
		return eris.Errorf("%d paper(s) failed analysis", batch.Failed)
	}
	if batch.Found == 0 {
		return eris.New("no papers could be analyzed")
	}
	return nil
}
