// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

func TestExtractScenario(t *testing.T) {
	fs := Extract("Fecal samples (n=48) from human IBD patients were analyzed via 16S rRNA sequencing at the genus level")

	want := map[types.FieldName]string{
		types.FieldHostSpecies:    "human",
		types.FieldBodySite:       "gut",
		types.FieldCondition:      "inflammatory bowel disease",
		types.FieldSequencingType: "16s",
		types.FieldTaxaLevel:      "genus",
		types.FieldSampleSize:     "48",
	}
	fs.Each(func(name types.FieldName, r types.FieldResult) {
		assert.Equal(t, types.StatusPresent, r.Status, name)
		assert.Equal(t, want[name], r.ValueOr(""), name)
		assert.Equal(t, HeuristicConfidence, r.Confidence, name)
		assert.Nil(t, r.ReasonIfMissing, name)
	})
}

func TestExtractNothing(t *testing.T) {
	fs := Extract("")
	fs.Each(func(name types.FieldName, r types.FieldResult) {
		assert.Equal(t, types.StatusAbsent, r.Status, name)
		assert.Nil(t, r.Value, name)
		assert.Zero(t, r.Confidence, name)
		assert.Equal(t, ReasonNotDetected, r.Reason(), name)
	})
}

func TestExtractFieldFirstMatchWins(t *testing.T) {
	tests := []struct {
		name  string
		field types.FieldName
		text  string
		want  string
	}{
		{"human before mouse", types.FieldHostSpecies, "Mice were colonized with stool from patients", "human"},
		{"mouse only", types.FieldHostSpecies, "Germ-free C57BL/6 mice", "mouse"},
		{"rat needs a word", types.FieldHostSpecies, "The ratio of Firmicutes was high", ""},
		{"rats", types.FieldHostSpecies, "Wistar rats received a high-fat diet", "rat"},
		{"gut before oral", types.FieldBodySite, "Oral and fecal samples", "gut"},
		{"oral", types.FieldBodySite, "Saliva was collected", "oral"},
		{"built environment", types.FieldBodySite, "Surfaces in the built environment", "indoor"},
		{"crohn", types.FieldCondition, "Patients with Crohn's disease", "inflammatory bowel disease"},
		{"obesity before diabetes", types.FieldCondition, "Obese and diabetic subjects", "obesity"},
		{"comparative", types.FieldCondition, "Cases compared with healthy controls", "comparative"},
		{"shotgun", types.FieldSequencingType, "Shotgun sequencing on a NovaSeq", "metagenomics"},
		{"its region", types.FieldSequencingType, "The ITS2 region was amplified", "its"},
		{"its as a pronoun", types.FieldSequencingType, "The cohort and its members", ""},
		{"generic sequencing", types.FieldSequencingType, "Samples were sequenced", "other"},
		{"phylum first", types.FieldTaxaLevel, "At the phylum and genus level", "phylum"},
		{"genera plural", types.FieldTaxaLevel, "Several genera differed", "genus"},
		{"order in prose ignored", types.FieldTaxaLevel, "In order to compare", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ExtractField(tt.field, tt.text)
			assert.Equal(t, tt.want, r.ValueOr(""))
			if tt.want == "" {
				assert.Equal(t, types.StatusAbsent, r.Status)
			}
		})
	}
}

func TestSampleSizePriority(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"n = 120 subjects and 30 samples", "120"},
		{"a sample size of 250", "250"},
		{"participants 64 enrolled", "64"},
		{"we collected 96 samples", "96"},
		{"we collected 5 samples", ""},
		{"n=12345", "1234"},
		{"no numbers here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractField(types.FieldSampleSize, tt.text).ValueOr(""))
		})
	}
}

func TestCategoriesOrdered(t *testing.T) {
	cats := Categories(types.FieldTaxaLevel)
	require.Len(t, cats, 6)
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"phylum", "class", "order", "family", "genus", "species"}, names)
	assert.Empty(t, Categories(types.FieldSampleSize))
}
