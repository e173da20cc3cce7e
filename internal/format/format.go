// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package format renders analyses, papers, and field descriptions for the
// CLI in table, JSON, CSV, XML, or YAML form.
package format

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.yaml.in/yaml/v3"
	"golang.org/x/term"
)

// Format is an output encoding.
type Format string

const (
	Table Format = "table"
	JSON  Format = "json"
	CSV   Format = "csv"
	XML   Format = "xml"
	YAML  Format = "yaml"
)

// Formats lists the supported encodings.
var Formats = []Format{Table, JSON, CSV, XML, YAML}

// Parse maps a flag value onto a Format. The empty string selects Table.
func Parse(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return Table, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", eris.Errorf("unsupported format %q: use table, json, csv, xml, or yaml", s)
}

// Extension returns the file extension conventionally used for f.
func (f Format) Extension() string {
	if f == Table {
		return ".txt"
	}
	return "." + string(f)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(v), "encoding JSON")
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encoding YAML")
	}
	return eris.Wrap(enc.Close(), "encoding YAML")
}

func writeXML(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encoding XML")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "encoding XML")
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// defaultValueWidth bounds value columns when the writer is not a terminal.
const defaultValueWidth = 40

// valueWidth sizes the free-text column of a table to the terminal, leaving
// room for the fixed columns.
func valueWidth(w io.Writer, fixed int) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultValueWidth
	}
	cols, _, err := term.GetSize(int(f.Fd()))
	if err != nil || cols-fixed < 20 {
		return defaultValueWidth
	}
	return cols - fixed
}

// clip shortens s to n runes, marking the cut with "...".
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
