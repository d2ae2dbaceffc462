package service

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/domain"
)

func retrievedPassage(id, title, text string, similarity float64) domain.RetrievedPassage {
	return domain.RetrievedPassage{
		PassageEmbedding: domain.PassageEmbedding{
			DocumentID: "doc1",
			PassageID:  id,
			Text:       text,
			Metadata: domain.EmbeddingMetadata{
				Title:    title,
				Location: domain.Location{StartIndex: 1, EndIndex: 2},
			},
		},
		Similarity: similarity,
	}
}

func TestBuildCitations_FiltersAndCaps(t *testing.T) {
	retrieved := []domain.RetrievedPassage{
		retrievedPassage("p1", "Rent", "rent text", 0.9),
		retrievedPassage("p2", "Deposit", "deposit text", 0.8),
		retrievedPassage("p3", "Pets", "pet text", 0.7),
		retrievedPassage("p4", "Notice", "notice text", 0.6),
		retrievedPassage("p5", "Repairs", "repair text", 0.4),
		retrievedPassage("p6", "Parking", "parking text", 0.35),
	}

	got := BuildCitations(retrieved)
	require.Len(t, got, 3)
	assert.Equal(t, "p1", got[0].PassageID)
	assert.Equal(t, "p2", got[1].PassageID)
	assert.Equal(t, "p3", got[2].PassageID)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Equal(t, "Rent", got[0].Title)
	assert.Equal(t, domain.Location{StartIndex: 1, EndIndex: 2}, got[0].Location)
}

func TestBuildCitations_ThresholdIsExclusive(t *testing.T) {
	got := BuildCitations([]domain.RetrievedPassage{
		retrievedPassage("p1", "A", "a", 0.4),
		retrievedPassage("p2", "B", "b", 0.41),
	})
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].PassageID)
	for _, c := range got {
		assert.Greater(t, c.Confidence, citationMinSimilarity)
	}
}

func TestBuildCitations_SkipsNaN(t *testing.T) {
	got := BuildCitations([]domain.RetrievedPassage{
		retrievedPassage("p1", "A", "a", math.NaN()),
		retrievedPassage("p2", "B", "b", 0.5),
	})
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].PassageID)
}

func TestBuildCitations_StripsTitleSuffixAndDedupes(t *testing.T) {
	got := BuildCitations([]domain.RetrievedPassage{
		retrievedPassage("p1-title", "Rent", "Rent: late fees are high", 0.95),
		retrievedPassage("p2", "Deposit", "deposit text", 0.85),
		retrievedPassage("p1", "Rent", "Rent is due monthly", 0.8),
	})

	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].PassageID)
	assert.Equal(t, 0.95, got[0].Confidence)
	assert.Equal(t, "Rent: late fees are high", got[0].Snippet)
	assert.Equal(t, "p2", got[1].PassageID)
}

func TestBuildCitations_Empty(t *testing.T) {
	assert.Empty(t, BuildCitations(nil))
}

func TestMakeSnippet(t *testing.T) {
	short := "Rent is   due\n monthly."
	assert.Equal(t, "Rent is due monthly.", makeSnippet(short))
	assert.Equal(t, "", makeSnippet(""))

	exact := strings.Repeat("a", snippetMaxChars)
	assert.Equal(t, exact, makeSnippet(exact))

	long := strings.Repeat("b", snippetMaxChars+50)
	got := makeSnippet(long)
	assert.Equal(t, snippetMaxChars, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))

	multibyte := strings.Repeat("é", snippetMaxChars+1)
	got = makeSnippet(multibyte)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, snippetMaxChars, utf8.RuneCountInString(got))
}
