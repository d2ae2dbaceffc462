package service

import (
	"sort"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const (
	citationMinSimilarity = 0.4
	maxCitations          = 3
	snippetMaxChars       = 200
)

// BuildCitations turns retrieved passages into at most three source
// citations. Only passages scoring above 0.4 are cited. The body and title
// variants of one passage collapse into a single citation carrying the
// better score.
func BuildCitations(retrieved []domain.RetrievedPassage) []domain.SourceCitation {
	best := make(map[string]domain.RetrievedPassage)
	order := make([]string, 0, len(retrieved))
	for _, r := range retrieved {
		// NaN never qualifies
		if !(r.Similarity > citationMinSimilarity) {
			continue
		}
		id := domain.SourcePassageID(r.PassageID)
		existing, ok := best[id]
		if !ok {
			best[id] = r
			order = append(order, id)
		} else if r.Similarity > existing.Similarity {
			best[id] = r
		}
	}

	citations := make([]domain.SourceCitation, 0, len(order))
	for _, id := range order {
		r := best[id]
		citations = append(citations, domain.SourceCitation{
			PassageID:  id,
			Title:      r.Metadata.Title,
			Snippet:    makeSnippet(r.Text),
			Location:   r.Metadata.Location,
			Confidence: r.Similarity,
		})
	}

	sort.SliceStable(citations, func(i, j int) bool {
		return citations[i].Confidence > citations[j].Confidence
	})

	if len(citations) > maxCitations {
		citations = citations[:maxCitations]
	}
	return citations
}

// makeSnippet collapses whitespace and truncates to snippetMaxChars runes,
// ellipsis included.
func makeSnippet(content string) string {
	if content == "" {
		return ""
	}
	clean := []rune(strings.Join(strings.Fields(content), " "))
	if len(clean) <= snippetMaxChars {
		return string(clean)
	}
	return string(clean[:snippetMaxChars-3]) + "..."
}
