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

type papersDoc struct {
	XMLName xml.Name             `xml:"papers"`
	Papers  []types.PaperContent `xml:"paper"`
}

// Papers writes retrieved paper content. The table form summarizes each
// paper; the other forms carry the full text.
func Papers(w io.Writer, f Format, papers []types.PaperContent) error {
	switch f {
	case JSON:
		if papers == nil {
			papers = []types.PaperContent{}
		}
		return writeJSON(w, papers)
	case YAML:
		return writeYAML(w, papers)
	case XML:
		return writeXML(w, papersDoc{Papers: papers})
	case CSV:
		return papersCSV(w, papers)
	case Table, "":
		return papersTable(w, papers)
	}
	return eris.Errorf("unsupported format %q", f)
}

func papersCSV(w io.Writer, papers []types.PaperContent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"PMID", "Title", "Journal", "Publication Date", "Authors", "Abstract", "Full Text Length", "Source"}); err != nil {
		return eris.Wrap(err, "writing CSV header")
	}
	for _, p := range papers {
		row := []string{
			p.PMID.String(),
			p.Title,
			p.Journal,
			p.PublicationDate,
			strings.Join(p.Authors, "; "),
			p.Abstract,
			strconv.Itoa(len(p.FullText)),
			p.Source,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "writing CSV row for %s", p.PMID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "flushing CSV")
}

func papersTable(w io.Writer, papers []types.PaperContent) error {
	if len(papers) == 0 {
		_, err := fmt.Fprintln(w, "No papers to display.")
		return err
	}
	width := valueWidth(w, 20)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, p := range papers {
		if i > 0 {
			fmt.Fprintln(tw, "\t")
		}
		fmt.Fprintf(tw, "PMID:\t%s\n", p.PMID)
		fmt.Fprintf(tw, "Title:\t%s\n", clip(orNA(p.Title), width))
		fmt.Fprintf(tw, "Journal:\t%s\n", orNA(p.Journal))
		fmt.Fprintf(tw, "Published:\t%s\n", orNA(p.PublicationDate))
		fmt.Fprintf(tw, "Authors:\t%s\n", clip(orNA(authorList(p.Authors)), width))
		fmt.Fprintf(tw, "Abstract:\t%d chars\n", len(p.Abstract))
		if p.HasFullText() {
			fmt.Fprintf(tw, "Full text:\t%d chars\n", len(p.FullText))
		} else {
			fmt.Fprintf(tw, "Full text:\tnot available\n")
		}
	}
	return tw.Flush()
}

func authorList(authors []string) string {
	const shown = 3
	if len(authors) <= shown {
		return strings.Join(authors, ", ")
	}
	return fmt.Sprintf("%s, et al. (%d authors)", strings.Join(authors[:shown], ", "), len(authors))
}
