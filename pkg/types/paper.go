// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"unicode"
)

// PaperID is a PubMed identifier (PMID). It is opaque to the pipeline;
// digits-only is the convention but not enforced.
type PaperID string

// String returns the identifier as a plain string.
func (id PaperID) String() string { return string(id) }

// Valid reports whether the identifier is non-empty after trimming.
func (id PaperID) Valid() bool {
	return strings.TrimSpace(string(id)) != ""
}

// Numeric reports whether the identifier consists only of digits.
func (id PaperID) Numeric() bool {
	if id == "" {
		return false
	}
	for _, r := range string(id) {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ParsePaperIDs splits command-line style arguments into identifiers.
// Arguments may be comma separated ("123,456") or given individually.
// Empty entries are dropped and the first occurrence of a duplicate wins.
func ParsePaperIDs(args []string) []PaperID {
	seen := make(map[PaperID]bool)
	var ids []PaperID
	for _, arg := range args {
		for _, part := range strings.FieldsFunc(arg, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		}) {
			id := PaperID(strings.TrimSpace(part))
			if !id.Valid() || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// PaperContent holds the text and bibliographic metadata retrieved for one
// paper. Missing full text is common and not an error.
type PaperContent struct {
	// PMID is the identifier the content was retrieved for.
	PMID PaperID `json:"pmid" yaml:"pmid" xml:"pmid"`

	// Title is the article title.
	Title string `json:"title" yaml:"title" xml:"title"`

	// Abstract is the concatenated abstract text.
	Abstract string `json:"abstract" yaml:"abstract" xml:"abstract"`

	// FullText is the PMC body text, or empty when no open-access copy exists.
	FullText string `json:"full_text" yaml:"full_text" xml:"full_text"`

	// Authors lists author names in source order.
	Authors []string `json:"authors" yaml:"authors" xml:"authors>author"`

	// Journal is the journal title.
	Journal string `json:"journal" yaml:"journal" xml:"journal"`

	// PublicationDate is the publication year or date as reported upstream.
	PublicationDate string `json:"publication_date" yaml:"publication_date" xml:"publication_date"`

	// Source records where the metadata came from: "efetch", "esummary", or "cache".
	Source string `json:"source,omitempty" yaml:"source,omitempty" xml:"source,omitempty"`
}

// Empty reports whether the paper has neither a title nor an abstract,
// meaning there is nothing to analyze.
func (p PaperContent) Empty() bool {
	return strings.TrimSpace(p.Title) == "" && strings.TrimSpace(p.Abstract) == ""
}

// HasFullText reports whether full text was retrieved.
func (p PaperContent) HasFullText() bool {
	return strings.TrimSpace(p.FullText) != ""
}
