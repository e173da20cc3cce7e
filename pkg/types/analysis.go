// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"encoding/xml"

	"go.yaml.in/yaml/v3"
)

// FieldSet maps each of the six curation fields to its result. It always
// holds all six entries and serializes them in canonical order.
type FieldSet struct {
	results [numFields]FieldResult
}

// NewFieldSet returns a set where every field is ABSENT with the given reason.
func NewFieldSet(reason string) FieldSet {
	var s FieldSet
	for i := range s.results {
		s.results[i] = Absent(reason)
	}
	return s
}

// Get returns the result for f. Unknown names yield an ABSENT result.
func (s FieldSet) Get(f FieldName) FieldResult {
	i, ok := fieldIndex(f)
	if !ok {
		return Absent(reasonNoValue)
	}
	return s.results[i].Normalize()
}

// Set stores a normalized copy of r under f. Unknown names are ignored,
// which keeps the field set closed.
func (s *FieldSet) Set(f FieldName, r FieldResult) {
	if i, ok := fieldIndex(f); ok {
		s.results[i] = r.Normalize()
	}
}

// Each calls fn for every field in canonical order.
func (s FieldSet) Each(fn func(FieldName, FieldResult)) {
	for i, name := range FieldNames {
		fn(name, s.results[i].Normalize())
	}
}

// Missing lists the fields whose status is not PRESENT, in canonical order.
func (s FieldSet) Missing() []FieldName {
	var missing []FieldName
	s.Each(func(name FieldName, r FieldResult) {
		if r.Status != StatusPresent {
			missing = append(missing, name)
		}
	})
	return missing
}

// MarshalJSON writes the six fields as an object in canonical order.
func (s FieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range FieldNames {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(name))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.results[i].Normalize())
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of field results. Unknown keys are dropped
// and missing fields become ABSENT.
func (s *FieldSet) UnmarshalJSON(data []byte) error {
	var raw map[string]FieldResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.fill(raw)
	return nil
}

func (s *FieldSet) fill(raw map[string]FieldResult) {
	for i, name := range FieldNames {
		r, ok := raw[string(name)]
		if !ok {
			s.results[i] = Absent(reasonNoValue)
			continue
		}
		s.results[i] = r.Normalize()
	}
}

// MarshalYAML emits an ordered mapping node so YAML output keeps canonical order.
func (s FieldSet) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for i, name := range FieldNames {
		val := &yaml.Node{}
		if err := val.Encode(s.results[i].Normalize()); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(name)},
			val,
		)
	}
	return node, nil
}

// UnmarshalYAML reads a mapping of field results.
func (s *FieldSet) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]FieldResult
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.fill(raw)
	return nil
}

// MarshalXML writes one child element per field, named after the field.
func (s FieldSet) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for i, name := range FieldNames {
		el := xml.StartElement{Name: xml.Name{Local: string(name)}}
		if err := e.EncodeElement(s.results[i].Normalize(), el); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// ResultStatus summarizes how an analysis completed.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultPartial ResultStatus = "partial"
	ResultError   ResultStatus = "error"
)

// AnalysisResult is the curation assessment of one paper. It is the unit
// returned to callers and stored in the analysis cache.
type AnalysisResult struct {
	PMID            PaperID  `json:"pmid" yaml:"pmid" xml:"pmid"`
	Title           string   `json:"title" yaml:"title" xml:"title"`
	Authors         []string `json:"authors" yaml:"authors" xml:"authors>author"`
	Journal         string   `json:"journal" yaml:"journal" xml:"journal"`
	PublicationDate string   `json:"publication_date" yaml:"publication_date" xml:"publication_date"`

	// Fields holds the six curation fields in canonical order.
	Fields FieldSet `json:"fields" yaml:"fields" xml:"fields"`

	// MissingFields lists fields whose status is not PRESENT. It is always
	// recomputed from Fields, never taken from model output.
	MissingFields []FieldName `json:"missing_fields" yaml:"missing_fields" xml:"missing_fields>field"`

	CurationSummary   string       `json:"curation_summary" yaml:"curation_summary" xml:"curation_summary"`
	Confidence        float64      `json:"confidence" yaml:"confidence" xml:"confidence"`
	Status            ResultStatus `json:"status" yaml:"status" xml:"status"`
	AnalysisTimestamp string       `json:"analysis_timestamp" yaml:"analysis_timestamp" xml:"analysis_timestamp"`
	ProcessingTime    float64      `json:"processing_time" yaml:"processing_time" xml:"processing_time"`
	ModelUsed         string       `json:"model_used" yaml:"model_used" xml:"model_used"`

	// Source is "analysis" for fresh results and "cache" when served from the cache.
	Source string `json:"source,omitempty" yaml:"source,omitempty" xml:"source,omitempty"`

	// Validation carries the optional second-opinion report.
	Validation []FieldValidation `json:"validation,omitempty" yaml:"validation,omitempty" xml:"validation>field,omitempty"`
}

// FieldValidation is the validator's corroboration of one extracted field.
type FieldValidation struct {
	Field    FieldName `json:"field" yaml:"field" xml:"field"`
	Status   Status    `json:"status" yaml:"status" xml:"status"`
	Score    float64   `json:"score" yaml:"score" xml:"score"`
	Category string    `json:"category,omitempty" yaml:"category,omitempty" xml:"category,omitempty"`
	Notes    string    `json:"notes" yaml:"notes" xml:"notes"`
}
