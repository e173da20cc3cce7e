// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package format

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// FieldDoc describes one curation field.
type FieldDoc struct {
	Key         types.FieldName `json:"key" yaml:"key" xml:"key,attr"`
	Name        string          `json:"name" yaml:"name" xml:"name"`
	Description string          `json:"description" yaml:"description" xml:"description"`
	Required    bool            `json:"required" yaml:"required" xml:"required"`
}

// StatusDoc describes one status value.
type StatusDoc struct {
	Status      types.Status `json:"status" yaml:"status" xml:"value,attr"`
	Description string       `json:"description" yaml:"description" xml:",chardata"`
}

// FieldsDocument is the listing served by the fields command and endpoint.
type FieldsDocument struct {
	XMLName      xml.Name    `json:"-" yaml:"-" xml:"fields"`
	Fields       []FieldDoc  `json:"fields" yaml:"fields" xml:"field"`
	StatusValues []StatusDoc `json:"status_values" yaml:"status_values" xml:"status"`
}

// Describe builds the fields listing in canonical order.
func Describe() FieldsDocument {
	var doc FieldsDocument
	for _, info := range types.FieldInfos() {
		doc.Fields = append(doc.Fields, FieldDoc{
			Key:         info.Name,
			Name:        info.DisplayName,
			Description: info.Description,
			Required:    info.Required,
		})
	}
	for _, s := range []types.Status{types.StatusPresent, types.StatusPartial, types.StatusAbsent} {
		doc.StatusValues = append(doc.StatusValues, StatusDoc{Status: s, Description: types.StatusDescriptions[s]})
	}
	return doc
}

// Fields writes the fields listing.
func Fields(w io.Writer, f Format) error {
	doc := Describe()
	switch f {
	case JSON:
		return writeJSON(w, doc)
	case YAML:
		return writeYAML(w, doc)
	case XML:
		return writeXML(w, doc)
	case CSV:
		cw := csv.NewWriter(w)
		cw.Write([]string{"Key", "Name", "Description", "Required"})
		for _, fd := range doc.Fields {
			cw.Write([]string{string(fd.Key), fd.Name, fd.Description, strconv.FormatBool(fd.Required)})
		}
		cw.Flush()
		return eris.Wrap(cw.Error(), "writing CSV")
	case Table, "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FIELD\tKEY\tREQUIRED\tDESCRIPTION")
		for _, fd := range doc.Fields {
			req := "no"
			if fd.Required {
				req = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", fd.Name, fd.Key, req, fd.Description)
		}
		fmt.Fprintln(tw, "\t\t\t")
		fmt.Fprintln(tw, "STATUS\tMEANING\t\t")
		for _, s := range doc.StatusValues {
			fmt.Fprintf(tw, "%s\t%s\t\t\n", s.Status, s.Description)
		}
		return tw.Flush()
	}
	return eris.Errorf("unsupported format %q", f)
}
