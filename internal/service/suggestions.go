package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/logging"
)

const (
	maxSuggestions        = 5
	maxSuggestionPassages = 8
)

// ParseError reports generator output that is not the expected JSON shape
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable suggestions: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SuggestQuestions asks the generator for up to five questions a reader might
// ask about the document. Output that does not parse as a JSON array of
// strings yields an empty list, never an error.
func (s *QAService) SuggestQuestions(ctx context.Context, documentID string) ([]string, error) {
	if documentID == "" {
		return nil, domain.ErrMissingRequiredField.Wrap(errors.New("document ID is required"))
	}

	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	analysis, err := s.documents.GetAnalysis(ctx, documentID)
	if err != nil {
		return nil, err
	}

	raw, err := s.generator.Generate(ctx, suggestionPrompt(doc, analysis), s.cfg.Generation)
	if err != nil {
		return nil, domain.ErrGenerationFailure.Wrap(err)
	}

	questions, err := parseSuggestions(raw)
	if err != nil {
		logging.From(ctx).Warn("discarding suggestions", "document_id", documentID, "error", err)
		return []string{}, nil
	}
	return questions, nil
}

func suggestionPrompt(doc *domain.Document, analysis *domain.Analysis) string {
	var b strings.Builder
	b.WriteString("Suggest up to 5 short questions a non-lawyer might ask about this document.\n")
	b.WriteString("Reply with a JSON array of strings and nothing else.\n")
	if doc.Type != "" {
		fmt.Fprintf(&b, "Document type: %s\n", doc.Type)
	}
	if doc.Jurisdiction != "" {
		fmt.Fprintf(&b, "Jurisdiction: %s\n", doc.Jurisdiction)
	}
	b.WriteString("\nKey sections:\n")
	for i, p := range analysis.Passages {
		if i == maxSuggestionPassages {
			break
		}
		fmt.Fprintf(&b, "- %s (%s risk): %s\n", p.Title, p.RiskLevel, p.Explanation)
	}
	return b.String()
}

// parseSuggestions accepts a bare JSON array of strings, optionally inside a
// markdown code fence. Blank and duplicate entries are dropped and at most
// five are kept.
func parseSuggestions(raw string) ([]string, error) {
	body := strings.TrimSpace(raw)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
		body = strings.TrimSpace(body)
	}

	var items []string
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&items); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if dec.More() {
		return nil, &ParseError{Raw: raw, Err: errors.New("trailing data after array")}
	}

	out := make([]string, 0, maxSuggestions)
	seen := make(map[string]struct{}, len(items))
	for _, q := range items {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out, nil
}
