package domain

import (
	"fmt"
	"time"
)

// RiskLevel is the risk grade an analysis assigned to a passage
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// Location is a character span inside the source document text
type Location struct {
	StartIndex int `json:"startIndex"`
	EndIndex   int `json:"endIndex"`
}

// Document is an uploaded document known to the document store
type Document struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Title        string    `json:"title"`
	Type         string    `json:"type"` // e.g. "lease", "employment contract"
	Jurisdiction string    `json:"jurisdiction"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Passage is one analyzed unit (clause or section) of a document
type Passage struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Explanation string    `json:"explanation"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	Location    Location  `json:"location"`
}

// Analysis is the completed analysis of a document
type Analysis struct {
	DocumentID  string    `json:"documentId"`
	Passages    []Passage `json:"passages"`
	CompletedAt time.Time `json:"completedAt"`
}

// NewDocument creates a new Document instance
func NewDocument(id, userID, title, docType, jurisdiction string, createdAt time.Time) *Document {
	return &Document{
		ID:           id,
		UserID:       userID,
		Title:        title,
		Type:         docType,
		Jurisdiction: jurisdiction,
		CreatedAt:    createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	return nil
}

// ValidateAnalysis validates an Analysis and each of its passages
func ValidateAnalysis(a *Analysis) error {
	if a == nil {
		return fmt.Errorf("analysis cannot be nil")
	}

	if a.DocumentID == "" {
		return fmt.Errorf("analysis DocumentID is required")
	}

	seen := make(map[string]struct{}, len(a.Passages))
	for i, p := range a.Passages {
		if p.ID == "" {
			return fmt.Errorf("passage %d ID is required", i)
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("passage ID %q is duplicated", p.ID)
		}
		seen[p.ID] = struct{}{}

		if p.Location.EndIndex < p.Location.StartIndex {
			return fmt.Errorf("passage %q location end precedes start", p.ID)
		}
	}

	return nil
}
