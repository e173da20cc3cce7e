// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"math"
	"strings"
)

// Status is the completeness classification of one curation field.
type Status string

const (
	StatusPresent   Status = "PRESENT"
	StatusPartial   Status = "PARTIALLY_PRESENT"
	StatusAbsent    Status = "ABSENT"
	statusUndefined Status = ""
)

// StatusDescriptions documents each status value for the fields endpoint.
var StatusDescriptions = map[Status]string{
	StatusPresent: "Information is complete and clear",
	StatusPartial: "Some information available but incomplete",
	StatusAbsent:  "Information is missing",
}

// ParseStatus maps a free-form status token onto a Status. Matching is
// case-insensitive and tolerates spaces or hyphens in place of underscores.
func ParseStatus(s string) (Status, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "PRESENT":
		return StatusPresent, true
	case "PARTIALLY_PRESENT", "PARTIAL", "PARTIALLY":
		return StatusPartial, true
	case "ABSENT", "MISSING":
		return StatusAbsent, true
	}
	return statusUndefined, false
}

// FieldName identifies one of the six curation fields. The set is closed.
type FieldName string

const (
	FieldHostSpecies    FieldName = "host_species"
	FieldBodySite       FieldName = "body_site"
	FieldCondition      FieldName = "condition"
	FieldSequencingType FieldName = "sequencing_type"
	FieldTaxaLevel      FieldName = "taxa_level"
	FieldSampleSize     FieldName = "sample_size"
)

// FieldNames is the canonical field order used for every serialization.
var FieldNames = [numFields]FieldName{
	FieldHostSpecies,
	FieldBodySite,
	FieldCondition,
	FieldSequencingType,
	FieldTaxaLevel,
	FieldSampleSize,
}

const numFields = 6

// Valid reports whether f is one of the six curation fields.
func (f FieldName) Valid() bool {
	_, ok := fieldIndex(f)
	return ok
}

func fieldIndex(f FieldName) (int, bool) {
	for i, name := range FieldNames {
		if name == f {
			return i, true
		}
	}
	return -1, false
}

// FieldInfo describes a curation field for prompts and the fields listing.
type FieldInfo struct {
	Name        FieldName `json:"-" yaml:"-"`
	DisplayName string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Required    bool      `json:"required" yaml:"required"`

	// Question is the targeted question asked in per-field extraction.
	Question string `json:"-" yaml:"-"`

	// ContentKey is the key holding the extracted value in the combined
	// response shape (e.g. "primary" for host_species).
	ContentKey string `json:"-" yaml:"-"`

	// Topic is the noun phrase used in curation suggestions.
	Topic string `json:"-" yaml:"-"`
}

var fieldInfos = [numFields]FieldInfo{
	{
		Name:        FieldHostSpecies,
		DisplayName: "Host Species",
		Description: "The host organism being studied (e.g., Human, Mouse, Rat)",
		Required:    true,
		Question:    "What host species is being studied in this research?",
		ContentKey:  "primary",
		Topic:       "host species",
	},
	{
		Name:        FieldBodySite,
		DisplayName: "Body Site",
		Description: "Where the microbiome sample was collected (e.g., Gut, Oral, Skin)",
		Required:    true,
		Question:    "What body site or anatomical location was sampled for microbiome analysis?",
		ContentKey:  "site",
		Topic:       "body site",
	},
	{
		Name:        FieldCondition,
		DisplayName: "Condition",
		Description: "What disease, treatment, or exposure is being studied",
		Required:    true,
		Question:    "What disease, treatment, or condition is being studied?",
		ContentKey:  "description",
		Topic:       "condition",
	},
	{
		Name:        FieldSequencingType,
		DisplayName: "Sequencing Type",
		Description: "What molecular method was used (e.g., 16S, metagenomics)",
		Required:    true,
		Question:    "What sequencing method or molecular technique was used?",
		ContentKey:  "method",
		Topic:       "sequencing method",
	},
	{
		Name:        FieldTaxaLevel,
		DisplayName: "Taxa Level",
		Description: "What taxonomic level was analyzed (e.g., phylum, genus, species)",
		Required:    true,
		Question:    "What taxonomic level was analyzed (phylum, genus, species, etc.)?",
		ContentKey:  "level",
		Topic:       "taxonomic level",
	},
	{
		Name:        FieldSampleSize,
		DisplayName: "Sample Size",
		Description: "Number of samples or participants analyzed",
		Required:    true,
		Question:    "How many samples or participants were included in the study?",
		ContentKey:  "size",
		Topic:       "sample size",
	},
}

// Info returns the static description of f. Unknown names return a zero FieldInfo.
func (f FieldName) Info() FieldInfo {
	if i, ok := fieldIndex(f); ok {
		return fieldInfos[i]
	}
	return FieldInfo{}
}

// FieldInfos returns the descriptions of all six fields in canonical order.
func FieldInfos() []FieldInfo {
	out := make([]FieldInfo, numFields)
	copy(out, fieldInfos[:])
	return out
}

// FieldResult is the extraction outcome for a single curation field.
type FieldResult struct {
	Status          Status  `json:"status" yaml:"status" xml:"status"`
	Value           *string `json:"value" yaml:"value" xml:"value,omitempty"`
	Confidence      float64 `json:"confidence" yaml:"confidence" xml:"confidence"`
	ReasonIfMissing *string `json:"reason_if_missing" yaml:"reason_if_missing" xml:"reason_if_missing,omitempty"`
	Suggestions     *string `json:"suggestions" yaml:"suggestions" xml:"suggestions,omitempty"`
}

// Present builds a PRESENT result.
func Present(value string, confidence float64) FieldResult {
	return FieldResult{Status: StatusPresent, Value: &value, Confidence: confidence}.Normalize()
}

// Partial builds a PARTIALLY_PRESENT result.
func Partial(value string, confidence float64, reason string) FieldResult {
	return FieldResult{Status: StatusPartial, Value: &value, Confidence: confidence, ReasonIfMissing: &reason}.Normalize()
}

// Absent builds an ABSENT result with confidence 0.
func Absent(reason string) FieldResult {
	return FieldResult{Status: StatusAbsent, ReasonIfMissing: &reason}
}

// WithSuggestions returns a copy of r carrying curation guidance.
func (r FieldResult) WithSuggestions(s string) FieldResult {
	if s != "" {
		r.Suggestions = &s
	}
	return r
}

// ValueOr returns the extracted value, or def when there is none.
func (r FieldResult) ValueOr(def string) string {
	if r.Value == nil {
		return def
	}
	return *r.Value
}

// Reason returns the missing reason or an empty string.
func (r FieldResult) Reason() string {
	if r.ReasonIfMissing == nil {
		return ""
	}
	return *r.ReasonIfMissing
}

const (
	reasonNoValue = "No value extracted"
	reasonPartial = "Information only partially described"
)

// Normalize coerces r so that Value is nil exactly when Status is ABSENT
// and Confidence lies in [0, 1]. Unknown statuses become ABSENT, and a
// non-ABSENT result without a usable value is demoted to ABSENT.
func (r FieldResult) Normalize() FieldResult {
	status, ok := ParseStatus(string(r.Status))
	if !ok {
		status = StatusAbsent
	}
	r.Status = status

	if r.Value != nil && IsNullValue(*r.Value) {
		r.Value = nil
	}
	if r.Value != nil {
		v := strings.TrimSpace(*r.Value)
		r.Value = &v
	}

	if r.Status != StatusAbsent && r.Value == nil {
		r.Status = StatusAbsent
	}

	switch r.Status {
	case StatusAbsent:
		r.Value = nil
		r.Confidence = 0
		if r.ReasonIfMissing == nil || strings.TrimSpace(*r.ReasonIfMissing) == "" {
			reason := reasonNoValue
			r.ReasonIfMissing = &reason
		}
	case StatusPresent:
		r.ReasonIfMissing = nil
	case StatusPartial:
		if r.ReasonIfMissing == nil || strings.TrimSpace(*r.ReasonIfMissing) == "" {
			reason := reasonPartial
			r.ReasonIfMissing = &reason
		}
	}
	r.Confidence = ClampConfidence(r.Confidence)
	return r
}

// ClampConfidence limits c to [0, 1]; NaN becomes 0.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// IsNullValue reports whether s is an explicit "no value" token that
// models emit in place of JSON null.
func IsNullValue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "none", "n/a", "nil":
		return true
	}
	return false
}

// IsPlaceholder reports whether v carries no real information. Placeholders
// do not earn the confidence boost given to PRESENT values.
func IsPlaceholder(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "unknown", "not specified":
		return true
	}
	return false
}
