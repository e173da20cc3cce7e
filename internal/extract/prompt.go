// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// contextLimit bounds the paper text placed in a per-field prompt.
const contextLimit = 2000

// fieldPromptTmpl asks one targeted question and requests a small JSON
// object. The parser tolerates prose around the object.
var fieldPromptTmpl = template.Must(template.New("field").Parse(`Context: {{.Context}}

Question: {{.Question}}

Please provide a specific answer based on the context. If the information is not available, clearly state that.

Respond in this JSON format:
{
    "value": "specific answer or null if not found",
    "status": "PRESENT|PARTIALLY_PRESENT|ABSENT",
    "confidence": 0.0-1.0,
    "reason_if_missing": "explanation if absent"
}
`))

// combinedPromptTmpl requests all six fields in one object, each under the
// field's content key.
var combinedPromptTmpl = template.Must(template.New("combined").Parse(`You are a specialized assistant for microbiome signature curation. Analyze the paper below and report, for each curation field, whether the information is present.

Title: {{.Title}}

Abstract: {{.Abstract}}
{{if .FullText}}
Full text excerpt: {{.FullText}}
{{end}}
For each field return an object with the content key shown, "confidence" (0.0-1.0), "status" (PRESENT, PARTIALLY_PRESENT or ABSENT), "reason_if_missing" and "suggestions_for_curation".
{{range .Fields}}
- "{{.Name}}" (content key "{{.ContentKey}}"): {{.Description}}
{{- end}}

Confidence guidance:
- PRESENT (0.8-1.0): the information is explicitly stated and clear
- PARTIALLY_PRESENT (0.4-0.7): the information is implied or partially described
- ABSENT (0.0): the information is missing or unclear

Respond with ONLY a valid JSON object whose keys are exactly the six field names above. Do not include any text before or after the JSON.
`))

// fullTextExcerpt bounds the full text appended to a combined prompt.
const fullTextExcerpt = 4000

func renderFieldPrompt(field types.FieldName, text string) (string, error) {
	var buf bytes.Buffer
	err := fieldPromptTmpl.Execute(&buf, struct {
		Context  string
		Question string
	}{
		Context:  Truncate(text, contextLimit),
		Question: field.Info().Question,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderCombinedPrompt(p types.PaperContent) (string, error) {
	var buf bytes.Buffer
	err := combinedPromptTmpl.Execute(&buf, struct {
		Title    string
		Abstract string
		FullText string
		Fields   []types.FieldInfo
	}{
		Title:    p.Title,
		Abstract: p.Abstract,
		FullText: Truncate(p.FullText, fullTextExcerpt),
		Fields:   types.FieldInfos(),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
