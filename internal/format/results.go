// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package format

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

type resultsDoc struct {
	XMLName xml.Name               `xml:"results"`
	Results []types.AnalysisResult `xml:"result"`
}

// Results writes analyses in the requested format.
func Results(w io.Writer, f Format, results []types.AnalysisResult) error {
	switch f {
	case JSON:
		if results == nil {
			results = []types.AnalysisResult{}
		}
		return writeJSON(w, results)
	case YAML:
		return writeYAML(w, results)
	case XML:
		return writeXML(w, resultsDoc{Results: results})
	case CSV:
		return resultsCSV(w, results)
	case Table, "":
		return resultsTable(w, results)
	}
	return eris.Errorf("unsupported format %q", f)
}

func resultsCSV(w io.Writer, results []types.AnalysisResult) error {
	cw := csv.NewWriter(w)
	header := []string{"PMID", "Title", "Journal"}
	for _, info := range types.FieldInfos() {
		header = append(header, info.DisplayName, info.DisplayName+" Status")
	}
	header = append(header, "Confidence", "Status", "Summary", "Processing Time")
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "writing CSV header")
	}

	for _, r := range results {
		row := []string{r.PMID.String(), r.Title, r.Journal}
		r.Fields.Each(func(_ types.FieldName, fr types.FieldResult) {
			row = append(row, fr.ValueOr(""), string(fr.Status))
		})
		row = append(row,
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			string(r.Status),
			r.CurationSummary,
			strconv.FormatFloat(r.ProcessingTime, 'f', 2, 64),
		)
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "writing CSV row for %s", r.PMID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "flushing CSV")
}

func resultsTable(w io.Writer, results []types.AnalysisResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results to display.")
		return err
	}

	width := valueWidth(w, 50)
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "PMID:    %s\n", r.PMID)
		fmt.Fprintf(w, "Title:   %s\n", orNA(r.Title))
		fmt.Fprintf(w, "Journal: %s\n", orNA(r.Journal))
		fmt.Fprintln(w, strings.Repeat("-", 60))

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FIELD\tSTATUS\tVALUE\tCONFIDENCE")
		r.Fields.Each(func(name types.FieldName, fr types.FieldResult) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\n",
				name.Info().DisplayName, fr.Status, clip(fr.ValueOr("N/A"), width), fr.Confidence)
		})
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(w, strings.Repeat("-", 60))
		fmt.Fprintf(w, "Summary:    %s\n", orNA(r.CurationSummary))
		fmt.Fprintf(w, "Confidence: %.2f (%s)\n", r.Confidence, r.Status)
		fmt.Fprintf(w, "Model:      %s\n", orNA(r.ModelUsed))
		if r.Source == "cache" {
			fmt.Fprintf(w, "Time:       %.2fs (cached)\n", r.ProcessingTime)
		} else {
			fmt.Fprintf(w, "Time:       %.2fs\n", r.ProcessingTime)
		}
		if len(r.Validation) > 0 {
			fmt.Fprintln(w, "Validation:")
			vw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			for _, v := range r.Validation {
				fmt.Fprintf(vw, "  %s\t%s\t%.2f\t%s\n", v.Field, v.Status, v.Score, v.Notes)
			}
			if err := vw.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
