// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package heuristic extracts the six curation fields with keyword and
// regex rules over lower-cased text. It needs no network and is used when
// the language model is disabled or fails.
package heuristic

import (
	"regexp"
	"strings"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// HeuristicConfidence is the fixed confidence of any heuristic match. It
// does not vary with match strength.
const HeuristicConfidence = 0.6

// ReasonNotDetected is the missing reason for fields no rule matched.
const ReasonNotDetected = "Not detected by heuristic fallback"

// Category is one named value a field can take, with the patterns that
// indicate it. Categories are tried in slice order and the first match wins.
type Category struct {
	Name     string
	Patterns []*regexp.Regexp
}

func category(name string, patterns ...string) Category {
	c := Category{Name: name}
	for _, p := range patterns {
		c.Patterns = append(c.Patterns, regexp.MustCompile(p))
	}
	return c
}

// matches reports whether any pattern occurs in text.
func (c Category) matches(text string) bool {
	for _, p := range c.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

var categories = map[types.FieldName][]Category{
	types.FieldHostSpecies: {
		category("human", `\bhumans?\b`, `\bhomo sapiens\b`, `\bpatients?\b`, `\bparticipants?\b`),
		category("mouse", `\bmouse\b`, `\bmice\b`, `\bmurine\b`, `\bmus musculus\b`),
		category("rat", `\brats?\b`, `\brattus\b`),
		category("zebrafish", `\bzebrafish\b`, `\bdanio rerio\b`),
		category("fly", `\bdrosophila\b`, `\bfruit fl(y|ies)\b`),
	},
	types.FieldBodySite: {
		category("gut", `\bgut\b`, `\bintestin(e|es|al)\b`, `\bstool\b`, `\bfa?eces\b`, `\bfa?ecal\b`, `\bcolon(ic)?\b`),
		category("oral", `\boral\b`, `\bsaliva(ry)?\b`, `\bdental plaque\b`, `\btongue\b`),
		category("skin", `\bskin\b`, `\bcutaneous\b`, `\bdermal\b`),
		category("vaginal", `\bvagina(l)?\b`, `\bcervi(x|cal)\b`),
		category("lung", `\blungs?\b`, `\bsputum\b`, `\bbronch\w*`, `\brespiratory\b`),
		category("nasal", `\bnasal\b`, `\bnasopharyn\w*`, `\bnose\b`),
		category("indoor", `\bindoor\b`, `\bbuilt environment\b`, `\bhospital rooms?\b`, `\brestrooms?\b`),
		category("outdoor", `\boutdoor\b`, `\bsoil\b`, `\bseawater\b`, `\bfreshwater\b`),
	},
	types.FieldCondition: {
		category("inflammatory bowel disease", `\bibd\b`, `\bcrohn`, `\bulcerative colitis\b`, `\binflammatory bowel\b`),
		category("obesity", `\bobes(e|ity)\b`, `\boverweight\b`),
		category("diabetes", `\bdiabet(es|ic)\b`, `\bt[12]d\b`),
		category("cancer", `\bcancers?\b`, `\btumou?rs?\b`, `\bcarcinoma\b`, `\bneoplas\w*`),
		category("antibiotic treatment", `\bantibiotics?\b`),
		category("dietary intervention", `\bdiet(ary)?\b`, `\bprobiotics?\b`, `\bprebiotics?\b`),
		category("comparative", `\bhealthy controls?\b`, `\bcompared (with|to)\b`, `\bversus\b`, `\bvs\b`),
		category("environmental", `\benvironmental\b`, `\bseasonal\b`, `\bpollution\b`),
	},
	types.FieldSequencingType: {
		category("16s", `\b16s\b`, `\bv[1-9](-v[1-9])? region\b`),
		category("metagenomics", `\bmetagenom\w*`, `\bshotgun\b`),
		category("metatranscriptomics", `\bmetatranscriptom\w*`),
		category("its", `\bits[12]? (region|rdna|sequencing|amplicon)`, `\binternal transcribed spacer\b`),
		category("other", `\bsequenc(ing|ed)\b`, `\bmicroarray\b`, `\bqpcr\b`, `\bculture-based\b`),
	},
	types.FieldTaxaLevel: {
		category("phylum", `\bphyl(um|a)\b`),
		category("class", `\bclass(-| )level\b`),
		category("order", `\border(-| )level\b`),
		category("family", `\bfamil(y|ies)\b`),
		category("genus", `\bgen(us|era)\b`),
		category("species", `\bspecies\b`),
	},
}

// sampleSizePatterns are tried in order. The first pattern with any
// all-digit group wins, and its last such group is the value.
var sampleSizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`n\s*=\s*(\d{2,4})`),
	regexp.MustCompile(`samples?\s*(size|count)?\s*(of|=)?\s*(\d{2,4})`),
	regexp.MustCompile(`participants?\s*(\d{2,4})`),
	regexp.MustCompile(`(\d{2,4})\s*(samples?|participants?)`),
}

// Categories returns the ordered categories for field. sample_size has
// none; it is matched by number patterns instead.
func Categories(field types.FieldName) []Category {
	return categories[field]
}

// Extract runs every field rule over text.
func Extract(text string) types.FieldSet {
	lower := strings.ToLower(text)
	var fs types.FieldSet
	for _, name := range types.FieldNames {
		fs.Set(name, extractLower(name, lower))
	}
	return fs
}

// ExtractField runs the rule for one field over text.
func ExtractField(field types.FieldName, text string) types.FieldResult {
	return extractLower(field, strings.ToLower(text))
}

func extractLower(field types.FieldName, lower string) types.FieldResult {
	var value string
	if field == types.FieldSampleSize {
		value = sampleSize(lower)
	} else {
		for _, c := range categories[field] {
			if c.matches(lower) {
				value = c.Name
				break
			}
		}
	}
	if value == "" {
		return types.Absent(ReasonNotDetected)
	}
	return types.Present(value, HeuristicConfidence)
}

func sampleSize(lower string) string {
	for _, re := range sampleSizePatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		last := ""
		for _, g := range m[1:] {
			if g != "" && allDigits(g) {
				last = g
			}
		}
		if last != "" {
			return last
		}
	}
	return ""
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
