package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
)

// ConversationStore keeps conversations in memory. A single mutex makes
// Create and AppendTurn atomic.
type ConversationStore struct {
	mu    sync.Mutex
	byID  map[string]*domain.Conversation
	clock func() time.Time
}

// NewConversationStore creates an empty ConversationStore
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		byID:  make(map[string]*domain.Conversation),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Create stores conv unless its ID is already taken
func (s *ConversationStore) Create(ctx context.Context, conv *domain.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateConversation(conv); err != nil {
		return domain.ErrMissingRequiredField.Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[conv.ID]; ok {
		return domain.ErrConversationAlreadyExists
	}
	s.byID[conv.ID] = cloneConversation(conv)
	return nil
}

// GetByID returns a copy of the conversation
func (s *ConversationStore) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return cloneConversation(conv), nil
}

// AppendTurn appends a user/assistant pair under the store lock
func (s *ConversationStore) AppendTurn(ctx context.Context, conversationID string, user, assistant domain.Message) (*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byID[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	if err := conv.AppendTurn(user, assistant, s.clock()); err != nil {
		return nil, err
	}
	return cloneConversation(conv), nil
}

// ListByDocument returns summaries newest first, starting after cursor
func (s *ConversationStore) ListByDocument(ctx context.Context, documentID, userID string, cursor *pagination.Cursor, limit int) ([]*domain.ConversationSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	matches := make([]*domain.ConversationSummary, 0)
	for _, conv := range s.byID {
		if conv.OwnedBy(documentID, userID) {
			matches = append(matches, conv.Summary())
		}
	}
	s.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool {
		return newerThan(matches[i].CreatedAt, matches[i].ID, matches[j].CreatedAt, matches[j].ID)
	})

	out := make([]*domain.ConversationSummary, 0, limit)
	for _, m := range matches {
		if !cursor.After(m.ID, m.CreatedAt) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// DeleteByDocument removes every conversation about the document
func (s *ConversationStore) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, conv := range s.byID {
		if conv.DocumentID == documentID {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored conversations
func (s *ConversationStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// newerThan orders by (createdAt, id) descending
func newerThan(aTime time.Time, aID string, bTime time.Time, bID string) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return aID > bID
}

func cloneConversation(c *domain.Conversation) *domain.Conversation {
	out := *c
	out.Messages = make([]domain.Message, len(c.Messages))
	for i, m := range c.Messages {
		m.Sources = append([]domain.SourceCitation(nil), m.Sources...)
		out.Messages[i] = m
	}
	return &out
}
