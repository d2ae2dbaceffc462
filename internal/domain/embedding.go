package domain

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/docqa/internal/vector"
)

// TitleVariantSuffix marks the passage ID of the title+explanation embedding
const TitleVariantSuffix = "-title"

// EmbeddingMetadata is the passage metadata stored next to an embedding
type EmbeddingMetadata struct {
	Title     string    `json:"title"`
	RiskLevel RiskLevel `json:"riskLevel"`
	Location  Location  `json:"location"`
}

// PassageEmbedding is the vector representation of one passage variant
type PassageEmbedding struct {
	DocumentID string
	PassageID  string
	Text       string
	Vector     []float32
	Metadata   EmbeddingMetadata
}

// RetrievedPassage is a PassageEmbedding scored against a query vector.
// It only lives for the duration of a single retrieval.
type RetrievedPassage struct {
	PassageEmbedding
	Similarity float64
}

// NewPassageEmbedding creates the body embedding of a passage
func NewPassageEmbedding(documentID string, p Passage, vec []float32) *PassageEmbedding {
	return &PassageEmbedding{
		DocumentID: documentID,
		PassageID:  p.ID,
		Text:       p.Text,
		Vector:     vec,
		Metadata:   metadataOf(p),
	}
}

// NewTitleEmbedding creates the title+explanation embedding of a passage
func NewTitleEmbedding(documentID string, p Passage, vec []float32) *PassageEmbedding {
	return &PassageEmbedding{
		DocumentID: documentID,
		PassageID:  TitleVariantID(p.ID),
		Text:       TitleVariantText(p),
		Vector:     vec,
		Metadata:   metadataOf(p),
	}
}

func metadataOf(p Passage) EmbeddingMetadata {
	return EmbeddingMetadata{
		Title:     p.Title,
		RiskLevel: p.RiskLevel,
		Location:  p.Location,
	}
}

// TitleVariantID returns the passage ID used for the title embedding
func TitleVariantID(passageID string) string {
	return passageID + TitleVariantSuffix
}

// TitleVariantText returns the text embedded for the title variant
func TitleVariantText(p Passage) string {
	return fmt.Sprintf("%s: %s", p.Title, p.Explanation)
}

// SourcePassageID strips the title variant suffix, if any
func SourcePassageID(passageID string) string {
	return strings.TrimSuffix(passageID, TitleVariantSuffix)
}

// ValidatePassageEmbedding validates an embedding before it is written.
// dimensions <= 0 disables the dimensionality check.
func ValidatePassageEmbedding(e *PassageEmbedding, dimensions int) error {
	if e == nil {
		return fmt.Errorf("passage embedding cannot be nil")
	}

	if e.DocumentID == "" {
		return fmt.Errorf("passage embedding DocumentID is required")
	}

	if e.PassageID == "" {
		return fmt.Errorf("passage embedding PassageID is required")
	}

	if err := vector.Validate(e.Vector, dimensions); err != nil {
		return ErrMalformedVector.Wrap(fmt.Errorf("passage %s: %w", e.PassageID, err))
	}

	return nil
}

// ValidateEmbeddingBatch validates that every embedding belongs to the same
// document and is well formed.
func ValidateEmbeddingBatch(batch []*PassageEmbedding, dimensions int) error {
	if len(batch) == 0 {
		return fmt.Errorf("embedding batch is empty")
	}

	documentID := batch[0].DocumentID
	seen := make(map[string]struct{}, len(batch))
	for _, e := range batch {
		if err := ValidatePassageEmbedding(e, dimensions); err != nil {
			return err
		}
		if e.DocumentID != documentID {
			return fmt.Errorf("embedding batch mixes documents %s and %s", documentID, e.DocumentID)
		}
		if _, ok := seen[e.PassageID]; ok {
			return fmt.Errorf("embedding batch has duplicate passage %s", e.PassageID)
		}
		seen[e.PassageID] = struct{}{}
	}

	return nil
}
