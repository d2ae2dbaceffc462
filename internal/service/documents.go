package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/logging"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

const (
	defaultConversationPageSize = 20
	maxConversationPageSize     = 100
)

// PurgeReport counts what PurgeDocument removed
type PurgeReport struct {
	DocumentID    string `json:"documentId"`
	Embeddings    int    `json:"embeddings"`
	Conversations int    `json:"conversations"`
}

// ListConversationsInput represents input for ListConversations
type ListConversationsInput struct {
	DocumentID string
	UserID     string
	Cursor     string
	Limit      int
}

// IndexDocument builds the embedding index of a document ahead of its first
// question. It is a no-op for documents that are already indexed.
func (s *QAService) IndexDocument(ctx context.Context, documentID string) (*IndexReport, error) {
	if documentID == "" {
		return nil, domain.ErrMissingRequiredField.Wrap(errors.New("document ID is required"))
	}
	if _, err := s.documents.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	analysis, err := s.documents.GetAnalysis(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return s.indexer.EnsureIndexed(ctx, analysis)
}

// PurgeDocument drops every embedding and conversation derived from a
// document. Call it when the document is deleted or expires.
func (s *QAService) PurgeDocument(ctx context.Context, documentID string) (*PurgeReport, error) {
	if documentID == "" {
		return nil, domain.ErrMissingRequiredField.Wrap(errors.New("document ID is required"))
	}

	ctx, span := telemetry.StartSpan(ctx, "QAService.PurgeDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "purge",
	})
	defer span.End()

	report := &PurgeReport{DocumentID: documentID}

	n, err := s.conversations.DeleteByDocument(ctx, documentID)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to delete conversations: %w", err)
	}
	report.Conversations = n

	n, err = s.embeddings.DeleteByDocument(ctx, documentID)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	report.Embeddings = n

	logging.From(ctx).Info("document purged",
		"document_id", documentID,
		"embeddings", report.Embeddings,
		"conversations", report.Conversations,
	)
	return report, nil
}

// GetConversation returns a conversation owned by userID. Conversations of
// other users are reported as not found.
func (s *QAService) GetConversation(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	if conversationID == "" || userID == "" {
		return nil, domain.ErrMissingRequiredField
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

// ListConversations pages through a user's conversations about a document,
// newest first.
func (s *QAService) ListConversations(ctx context.Context, input ListConversationsInput) (*pagination.PageResult[*domain.ConversationSummary], error) {
	if input.DocumentID == "" || input.UserID == "" {
		return nil, domain.ErrMissingRequiredField
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, domain.KindInvalidInput, "invalid cursor", err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultConversationPageSize
	}
	if limit > maxConversationPageSize {
		limit = maxConversationPageSize
	}

	items, err := s.conversations.ListByDocument(ctx, input.DocumentID, input.UserID, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	return pagination.NewPage(items, limit, func(c *domain.ConversationSummary) (string, time.Time) {
		return c.ID, c.CreatedAt
	}), nil
}
