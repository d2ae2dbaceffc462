package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDocument(t *testing.T) {
	now := time.Now()
	d := NewDocument("doc1", "user1", "Lease", "lease", "CA", now)

	assert.Equal(t, "doc1", d.ID)
	assert.Equal(t, "user1", d.UserID)
	assert.Equal(t, "Lease", d.Title)
	assert.Equal(t, "lease", d.Type)
	assert.Equal(t, "CA", d.Jurisdiction)
	assert.Equal(t, now, d.CreatedAt)
	assert.NoError(t, ValidateDocument(d))
}

func TestValidateDocument(t *testing.T) {
	assert.Error(t, ValidateDocument(nil))
	assert.EqualError(t, ValidateDocument(&Document{}), "document ID is required")
}

func TestValidateAnalysis(t *testing.T) {
	tests := []struct {
		name     string
		analysis *Analysis
		errMsg   string
	}{
		{"nil", nil, "analysis cannot be nil"},
		{"missing document", &Analysis{}, "analysis DocumentID is required"},
		{
			"missing passage id",
			&Analysis{DocumentID: "d", Passages: []Passage{{Title: "x"}}},
			"passage 0 ID is required",
		},
		{
			"duplicate passage",
			&Analysis{DocumentID: "d", Passages: []Passage{{ID: "a"}, {ID: "a"}}},
			`passage ID "a" is duplicated`,
		},
		{
			"inverted location",
			&Analysis{DocumentID: "d", Passages: []Passage{{ID: "a", Location: Location{StartIndex: 5, EndIndex: 2}}}},
			`passage "a" location end precedes start`,
		},
		{"no passages is fine", &Analysis{DocumentID: "d"}, ""},
		{"valid", &Analysis{DocumentID: "d", Passages: []Passage{samplePassage()}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAnalysis(tt.analysis)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.errMsg)
		})
	}
}
