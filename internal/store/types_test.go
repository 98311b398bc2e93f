package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetadataFilterMatches(t *testing.T) {
	doc := &Document{
		ID:          "d1",
		Type:        DocumentTypeProposal,
		Programs:    []string{"youth-literacy", "after-school"},
		Tags:        []string{"education"},
		PublishedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name   string
		filter *MetadataFilter
		doc    *Document
		want   bool
	}{
		{"nil filter matches", nil, doc, true},
		{"zero filter matches", &MetadataFilter{}, doc, true},
		{"matching type", &MetadataFilter{Types: []DocumentType{DocumentTypeProposal}}, doc, true},
		{"wrong type", &MetadataFilter{Types: []DocumentType{DocumentTypeBudget}}, doc, false},
		{"any-of types", &MetadataFilter{Types: []DocumentType{DocumentTypeBudget, DocumentTypeProposal}}, doc, true},
		{"matching program", &MetadataFilter{Programs: []string{"after-school"}}, doc, true},
		{"wrong program", &MetadataFilter{Programs: []string{"housing"}}, doc, false},
		{"matching tag", &MetadataFilter{Tags: []string{"education"}}, doc, true},
		{"wrong tag", &MetadataFilter{Tags: []string{"health"}}, doc, false},
		{"year in range", &MetadataFilter{YearFrom: 2024, YearTo: 2024}, doc, true},
		{"year below range", &MetadataFilter{YearFrom: 2025}, doc, false},
		{"year above range", &MetadataFilter{YearTo: 2023}, doc, false},
		{"open-ended from", &MetadataFilter{YearFrom: 2020}, doc, true},
		{"undated fails year clause", &MetadataFilter{YearFrom: 2020}, &Document{ID: "d2"}, false},
		{"nil document fails constrained clause", &MetadataFilter{Tags: []string{"education"}}, nil, false},
		{"nil document passes zero filter", &MetadataFilter{}, nil, true},
		{
			"all clauses must hold",
			&MetadataFilter{
				Types:    []DocumentType{DocumentTypeProposal},
				Programs: []string{"youth-literacy"},
				YearFrom: 2025,
			},
			doc,
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.doc))
		})
	}
}

func TestMetadataFilterIsZero(t *testing.T) {
	var nilFilter *MetadataFilter
	assert.True(t, nilFilter.IsZero())
	assert.True(t, (&MetadataFilter{}).IsZero())
	assert.False(t, (&MetadataFilter{YearTo: 2024}).IsZero())
	assert.False(t, (&MetadataFilter{Tags: []string{"x"}}).IsZero())
}

func TestDocumentYear(t *testing.T) {
	var nilDoc *Document
	assert.Zero(t, nilDoc.Year())
	assert.Zero(t, (&Document{}).Year())
	assert.Equal(t, 2023, (&Document{PublishedAt: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)}).Year())
}
