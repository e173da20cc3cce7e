// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate gives a second opinion on extracted fields by checking
// whether the claimed value is corroborated by pattern occurrences in the
// source text. It never overrides the extractor's status.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

const (
	presentThreshold = 0.8
	partialThreshold = 0.4

	// noTextConfidence is used when there is no source text to check.
	noTextConfidence = 0.5
)

type category struct {
	name     string
	patterns []*regexp.Regexp
}

func cat(name string, patterns ...string) category {
	c := category{name: name}
	for _, p := range patterns {
		c.patterns = append(c.patterns, regexp.MustCompile(`(?i)`+p))
	}
	return c
}

// tables are tried in order; on equal scores the earlier category wins.
var tables = map[types.FieldName][]category{
	types.FieldHostSpecies: {
		cat("human", `human`, `patients?`, `participants?`, `subjects?`, `volunteers?`),
		cat("mouse", `mouse`, `mice`, `murine`, `c57bl`, `balb/c`),
		cat("rat", `rat`, `rats`, `rattus`),
		cat("environmental", `environmental?`, `environment`, `indoor`, `outdoor`, `built environment`, `natural environment`),
		cat("mixed", `mixed`, `combination`, `both human and`),
	},
	types.FieldBodySite: {
		cat("gut", `gut`, `intestine`, `intestinal`, `stool`, `feces`, `fecal`, `colon`),
		cat("oral", `oral`, `mouth`, `saliva`, `dental`, `tooth`, `teeth`, `tongue`),
		cat("skin", `skin`, `cutaneous`, `dermal`, `epidermal`),
		cat("vaginal", `vaginal`, `vagina`, `cervical`, `cervix`),
		cat("lung", `lung`, `respiratory`, `airway`, `bronchial`),
		cat("indoor", `indoor`, `building`, `room`, `office`, `home`, `restroom`, `bathroom`, `hospital`, `school`),
		cat("outdoor", `outdoor`, `soil`, `air`, `water`, `surface`),
	},
	types.FieldCondition: {
		cat("disease", `ibd`, `crohn`, `ulcerative colitis`, `obesity`, `diabetes`, `cancer`, `tumor`),
		cat("treatment", `antibiotic`, `treatment`, `intervention`, `therapy`),
		cat("comparative", `men vs women`, `healthy vs`, `before vs after`, `control vs`, `comparison`),
		cat("environmental", `seasonal`, `temporal`, `spatial`, `geographic`, `climatic`),
	},
	types.FieldSequencingType: {
		cat("16s", `16s`, `16s rrna`, `16s ribosomal`, `v4`, `v3-v4`, `amplicon`),
		cat("metagenomics", `metagenomic`, `metagenomics`, `shotgun`, `whole genome`, `wgs`),
		cat("metatranscriptomics", `metatranscriptomic`, `metatranscriptomics`, `rna-seq`, `transcriptome`),
		cat("other", `sequencing`, `next-generation`, `ngs`, `illumina`, `pacbio`),
	},
	types.FieldTaxaLevel: {
		cat("phylum", `phylum`, `phyla`, `proteobacteria`, `actinobacteria`, `bacteroidetes`, `firmicutes`),
		cat("genus", `genus`, `genera`, `bacteroides`, `prevotella`, `lactobacillus`, `bifidobacterium`),
		cat("species", `species`, `e\. coli`, `b\. fragilis`, `l\. acidophilus`, `b\. longum`),
		cat("family", `family`, `families`, `enterobacteriaceae`, `lactobacillaceae`, `bifidobacteriaceae`),
	},
	types.FieldSampleSize: {
		cat("numeric", `n\s*=\s*\d+`, `\d+\s*participants?`, `\d+\s*samples?`, `\d+\s*subjects?`),
		cat("descriptive", `multiple`, `several`, `various`, `different`, `longitudinal`, `time points?`),
	},
}

// corroborate scores value against text for field and returns the best
// category. A category with n patterns found in text scores 0.6+0.2n when
// one of those patterns also occurs in value, otherwise 0.3+0.1n, capped
// at 1.
func corroborate(field types.FieldName, value, text string) (float64, string) {
	var (
		best     float64
		bestName string
	)
	for _, c := range tables[field] {
		var matched []*regexp.Regexp
		for _, p := range c.patterns {
			if p.MatchString(text) {
				matched = append(matched, p)
			}
		}
		if len(matched) == 0 {
			continue
		}

		// Scores are computed in tenths so thresholds compare exactly.
		n := len(matched)
		conf := min(1, float64(3+n)/10)
		for _, p := range matched {
			if p.MatchString(value) {
				conf = min(1, float64(6+2*n)/10)
				break
			}
		}
		if conf > best {
			best, bestName = conf, c.name
		}
	}
	return best, bestName
}

// Validate scores one field's extracted value against the source text.
// With no text the value is taken as half-corroborated.
func Validate(field types.FieldName, value, text string) types.FieldValidation {
	v := types.FieldValidation{Field: field, Status: types.StatusAbsent}
	if types.IsPlaceholder(value) {
		v.Notes = "No content extracted"
		return v
	}

	conf := noTextConfidence
	if strings.TrimSpace(text) != "" {
		conf, v.Category = corroborate(field, value, text)
	}

	switch {
	case conf >= presentThreshold:
		v.Status = types.StatusPresent
		v.Score = min(1, conf+0.1)
		v.Notes = "Field is complete and matches expected patterns"
	case conf >= partialThreshold:
		v.Status = types.StatusPartial
		v.Score = conf
		v.Notes = fmt.Sprintf("Partial information found: %s. Consider reviewing for additional details", value)
	default:
		v.Notes = fmt.Sprintf("No clear information found for %s. Review paper for additional information", field)
	}
	return v
}

// Report is the validator's per-field output in canonical field order.
type Report []types.FieldValidation

// Enhance validates every field of fs against text. The returned set keeps
// each field's status, value and confidence; fields that are not PRESENT
// and carry no curation guidance get the validator's notes as suggestions.
func Enhance(fs types.FieldSet, text string) (types.FieldSet, Report) {
	out := fs
	report := make(Report, 0, len(types.FieldNames))
	fs.Each(func(name types.FieldName, r types.FieldResult) {
		v := Validate(name, r.ValueOr(""), text)
		report = append(report, v)
		if r.Status != types.StatusPresent && r.Suggestions == nil {
			out.Set(name, r.WithSuggestions(v.Notes))
		}
	})
	return out, report
}
