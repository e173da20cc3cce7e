// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"fmt"
	"strings"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

const (
	presentBoost     = 0.1
	highConfidence   = 0.8
	highConfWeight   = 1.2
	majorReviewLimit = 3
)

// DocumentConfidence scores a whole paper from its six fields. A PRESENT
// field with a real value earns +0.1; PARTIALLY_PRESENT keeps its own
// confidence; anything else scores 0. Scores at or above 0.8 are weighted
// by 1.2 before averaging, and the mean is capped at 1.
func DocumentConfidence(fields types.FieldSet) float64 {
	var sum float64
	n := 0
	fields.Each(func(_ types.FieldName, r types.FieldResult) {
		var score float64
		switch r.Status {
		case types.StatusPresent:
			score = r.Confidence
			if !types.IsPlaceholder(r.ValueOr("")) {
				score = min(1, score+presentBoost)
			}
		case types.StatusPartial:
			score = r.Confidence
		}
		if score >= highConfidence {
			score *= highConfWeight
		}
		sum += score
		n++
	})
	if n == 0 {
		return 0
	}
	return min(1, sum/float64(n))
}

// CurationSummary describes how ready a paper is given its missing fields.
func CurationSummary(missing []types.FieldName) string {
	names := make([]string, len(missing))
	for i, f := range missing {
		names[i] = string(f)
	}
	switch {
	case len(missing) == 0:
		return "All required fields are present. Paper is ready for curation."
	case len(missing) == 1:
		return fmt.Sprintf("Missing 1 field: %s. Review paper for this information.", names[0])
	case len(missing) <= majorReviewLimit:
		return fmt.Sprintf("Missing %d fields: %s. Paper needs additional review.", len(missing), strings.Join(names, ", "))
	default:
		return fmt.Sprintf("Missing %d fields: %s. Paper requires significant review before curation.", len(missing), strings.Join(names, ", "))
	}
}
