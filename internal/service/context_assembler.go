package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// historyWindow is the number of trailing messages (three exchanges) kept in a prompt
const historyWindow = 6

// PromptContext is everything the generation step needs for one question
type PromptContext struct {
	Passages     string
	History      string
	Question     string
	DocumentType string
	Jurisdiction string
	SectionCount int
}

// AssembleContext formats retrieved passages in retrieval order as
// "[Section i] {title}: {text}" blocks and keeps only the last six history
// messages. Older history is dropped.
func AssembleContext(doc *domain.Document, retrieved []domain.RetrievedPassage, history []domain.Message, question string) *PromptContext {
	pc := &PromptContext{
		Question:     strings.TrimSpace(question),
		SectionCount: len(retrieved),
	}
	if doc != nil {
		pc.DocumentType = doc.Type
		pc.Jurisdiction = doc.Jurisdiction
	}

	blocks := make([]string, 0, len(retrieved))
	for i, r := range retrieved {
		blocks = append(blocks, fmt.Sprintf("[Section %d] %s: %s", i+1, r.Metadata.Title, r.Text))
	}
	pc.Passages = strings.Join(blocks, "\n\n")

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", roleLabel(m.Role), m.Content))
	}
	pc.History = strings.Join(lines, "\n")

	return pc
}

func roleLabel(r domain.Role) string {
	if r == domain.RoleAssistant {
		return "Assistant"
	}
	return "User"
}

// Render builds the generation prompt
func (pc *PromptContext) Render() string {
	var b strings.Builder

	b.WriteString("You are helping a reader understand a legal document.\n")
	if pc.DocumentType != "" {
		fmt.Fprintf(&b, "Document type: %s\n", pc.DocumentType)
	}
	if pc.Jurisdiction != "" {
		fmt.Fprintf(&b, "Jurisdiction: %s\n", pc.Jurisdiction)
	}

	b.WriteString("\nInstructions:\n")
	b.WriteString("- Answer only from the document sections below. Do not use outside knowledge.\n")
	b.WriteString("- Use plain language a non-lawyer can follow.\n")
	b.WriteString("- Cite the sections you rely on, for example \"Section 2\", whenever possible.\n")
	b.WriteString("- If the sections do not contain enough information, say that you cannot answer from this document.\n")

	b.WriteString("\nDocument sections:\n")
	if pc.Passages == "" {
		b.WriteString("(no relevant sections were found)\n")
	} else {
		b.WriteString(pc.Passages)
		b.WriteString("\n")
	}

	if pc.History != "" {
		b.WriteString("\nConversation so far:\n")
		b.WriteString(pc.History)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nQuestion: %s\nAnswer:", pc.Question)
	return b.String()
}
