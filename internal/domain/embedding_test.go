package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePassage() Passage {
	return Passage{
		ID:          "p1",
		Title:       "Termination",
		Text:        "Either party may terminate with 30 days notice.",
		Explanation: "Short notice period favours the landlord.",
		RiskLevel:   RiskLevelHigh,
		Location:    Location{StartIndex: 10, EndIndex: 58},
	}
}

func TestNewPassageEmbedding(t *testing.T) {
	p := samplePassage()
	e := NewPassageEmbedding("doc1", p, []float32{0.1, 0.2})

	assert.Equal(t, "doc1", e.DocumentID)
	assert.Equal(t, "p1", e.PassageID)
	assert.Equal(t, p.Text, e.Text)
	assert.Equal(t, "Termination", e.Metadata.Title)
	assert.Equal(t, RiskLevelHigh, e.Metadata.RiskLevel)
	assert.Equal(t, Location{StartIndex: 10, EndIndex: 58}, e.Metadata.Location)
}

func TestNewTitleEmbedding(t *testing.T) {
	p := samplePassage()
	e := NewTitleEmbedding("doc1", p, []float32{0.1, 0.2})

	assert.Equal(t, "p1-title", e.PassageID)
	assert.Equal(t, "Termination: Short notice period favours the landlord.", e.Text)
	assert.Equal(t, "Termination", e.Metadata.Title)
}

func TestSourcePassageID(t *testing.T) {
	assert.Equal(t, "p1", SourcePassageID("p1-title"))
	assert.Equal(t, "p1", SourcePassageID("p1"))
	assert.Equal(t, "sub-title", SourcePassageID("sub-title-title"))
}

func TestValidatePassageEmbedding(t *testing.T) {
	valid := func() *PassageEmbedding {
		return &PassageEmbedding{DocumentID: "doc1", PassageID: "p1", Vector: []float32{0.1, 0.2, 0.3}}
	}

	tests := []struct {
		name      string
		mutate    func(e *PassageEmbedding)
		malformed bool
		wantErr   bool
	}{
		{"valid", func(e *PassageEmbedding) {}, false, false},
		{"missing document", func(e *PassageEmbedding) { e.DocumentID = "" }, false, true},
		{"missing passage", func(e *PassageEmbedding) { e.PassageID = "" }, false, true},
		{"empty vector", func(e *PassageEmbedding) { e.Vector = nil }, true, true},
		{"wrong dimension", func(e *PassageEmbedding) { e.Vector = []float32{0.1} }, true, true},
		{"nan", func(e *PassageEmbedding) { e.Vector[1] = float32(math.NaN()) }, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			err := ValidatePassageEmbedding(e, 3)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.malformed, errors.Is(err, ErrMalformedVector))
		})
	}

	assert.Error(t, ValidatePassageEmbedding(nil, 3))
}

func TestValidateEmbeddingBatch(t *testing.T) {
	p := samplePassage()
	body := NewPassageEmbedding("doc1", p, []float32{1, 0})
	title := NewTitleEmbedding("doc1", p, []float32{0, 1})

	assert.NoError(t, ValidateEmbeddingBatch([]*PassageEmbedding{body, title}, 2))
	assert.Error(t, ValidateEmbeddingBatch(nil, 2))
	assert.Error(t, ValidateEmbeddingBatch([]*PassageEmbedding{body, body}, 2))

	other := NewPassageEmbedding("doc2", Passage{ID: "p9"}, []float32{1, 1})
	assert.Error(t, ValidateEmbeddingBatch([]*PassageEmbedding{body, other}, 2))

	bad := NewPassageEmbedding("doc1", Passage{ID: "p2"}, []float32{1})
	err := ValidateEmbeddingBatch([]*PassageEmbedding{body, bad}, 2)
	assert.ErrorIs(t, err, ErrMalformedVector)
}
