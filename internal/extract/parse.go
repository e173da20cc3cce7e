// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

const (
	reasonCallFailed     = "Analysis failed or timed out"
	reasonNotInAnalysis  = "Field not found in analysis"
	reasonRerunRequired  = "Analysis failed - re-run required"
	suggestionRerun      = "Re-run analysis with corrected prompt"
	reasonFreeTextAbsent = "Information not found in the paper"
	maxFreeTextValue     = 500
)

// jsonSpan returns the text from the first '{' to the last '}'.
func jsonSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// parseFieldReply decodes a per-field reply. When no JSON object can be
// decoded it falls back to reading a status keyword and a confidence
// from the prose. The returned result is always normalized.
func parseFieldReply(reply string) types.FieldResult {
	if span, ok := jsonSpan(reply); ok {
		var obj map[string]any
		if err := json.Unmarshal([]byte(span), &obj); err == nil {
			return fieldFromObject(obj, "value", "", "")
		}
	}
	return parseFreeText(reply)
}

// fieldFromObject builds a result from a decoded object. contentKey names
// the value key; "value" is accepted as an alias. Defaults apply to any
// key the model left out.
func fieldFromObject(obj map[string]any, contentKey, defaultReason, defaultSuggestion string) types.FieldResult {
	value, ok := stringOf(obj[contentKey])
	if !ok && contentKey != "value" {
		value, ok = stringOf(obj["value"])
	}

	r := types.FieldResult{
		Status:     types.StatusAbsent,
		Confidence: floatOf(obj["confidence"]),
	}
	if ok {
		r.Value = &value
	}
	if s, ok := stringOf(obj["status"]); ok {
		r.Status = types.Status(s)
	}
	if reason, ok := stringOf(obj["reason_if_missing"]); ok && reason != "" {
		r.ReasonIfMissing = &reason
	} else if defaultReason != "" {
		r.ReasonIfMissing = &defaultReason
	}

	suggestion, ok := stringOf(obj["suggestions_for_curation"])
	if !ok {
		suggestion, _ = stringOf(obj["suggestions"])
	}
	if suggestion == "" {
		suggestion = defaultSuggestion
	}
	return r.Normalize().WithSuggestions(suggestion)
}

var (
	statusKeyword  = regexp.MustCompile(`(?i)\b(partially[_ -]present|present|absent)\b`)
	labeledStatus  = regexp.MustCompile(`(?i)\bstatus\s*[:=]\s*"?(partially[_ -]present|present|absent)\b`)
	negatedPresent = regexp.MustCompile(`(?i)\b(?:not|never)\s+(?:(?:partially[_ -])?present|mentioned|found|reported|specified|stated|available|provided|described)\b|\bno\s+(?:mention|information|indication)\b`)
	numberPattern  = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// parseFreeText reads a status and the first number in [0, 1] from prose.
// A "status: X" label wins over everything else. Otherwise a negated
// phrase such as "not present" or "not mentioned" means ABSENT, and a bare
// keyword is used last. Without any of these the field is ABSENT.
func parseFreeText(reply string) types.FieldResult {
	var m string
	if sub := labeledStatus.FindStringSubmatch(reply); sub != nil {
		m = sub[1]
	} else if negatedPresent.MatchString(reply) {
		return types.Absent(reasonFreeTextAbsent)
	} else {
		m = statusKeyword.FindString(reply)
	}
	if m == "" {
		return types.Absent(reasonFreeTextAbsent)
	}
	status, _ := types.ParseStatus(m)

	var confidence float64
	for _, n := range numberPattern.FindAllString(reply, -1) {
		f, err := strconv.ParseFloat(n, 64)
		if err == nil && f >= 0 && f <= 1 {
			confidence = f
			break
		}
	}

	if status == types.StatusAbsent {
		return types.Absent(reasonFreeTextAbsent)
	}
	value := Truncate(strings.TrimSpace(reply), maxFreeTextValue)
	return types.FieldResult{Status: status, Value: &value, Confidence: confidence}.Normalize()
}

// parseCombinedReply decodes a combined reply into a full field set. Every
// field the model omitted is default-filled. ok is false when no JSON
// object could be decoded, in which case every field carries the re-run
// reason.
func parseCombinedReply(reply string) (fields types.FieldSet, ok bool) {
	span, found := jsonSpan(reply)
	if !found {
		span = reply
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return rerunFieldSet(), false
	}

	for _, info := range types.FieldInfos() {
		suggestion := "Review paper for " + info.Topic + " information"

		var sub map[string]any
		raw, present := obj[string(info.Name)]
		if !present || json.Unmarshal(raw, &sub) != nil || sub == nil {
			fields.Set(info.Name, types.Absent(reasonNotInAnalysis).WithSuggestions(suggestion))
			continue
		}
		if _, has := sub[info.ContentKey]; !has {
			if _, alias := sub["value"]; !alias {
				sub[info.ContentKey] = "Unknown"
			}
		}
		fields.Set(info.Name, fieldFromObject(sub, info.ContentKey, reasonNotInAnalysis, suggestion))
	}
	return fields, true
}

func rerunFieldSet() types.FieldSet {
	var fs types.FieldSet
	for _, name := range types.FieldNames {
		fs.Set(name, types.Absent(reasonRerunRequired).WithSuggestions(suggestionRerun))
	}
	return fs
}

// stringOf renders a scalar JSON value as a string. Numbers keep their
// shortest form so a sample size of 48 reads "48".
func stringOf(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// floatOf reads a confidence given as a number or numeric string.
func floatOf(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err == nil {
			return f
		}
	}
	return 0
}
