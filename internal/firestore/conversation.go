package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
)

type citationDoc struct {
	PassageID  string  `firestore:"passage_id"`
	Title      string  `firestore:"title"`
	Snippet    string  `firestore:"snippet"`
	StartIndex int     `firestore:"start_index"`
	EndIndex   int     `firestore:"end_index"`
	Confidence float64 `firestore:"confidence"`
}

type messageDoc struct {
	ID        string        `firestore:"id"`
	Role      string        `firestore:"role"`
	Content   string        `firestore:"content"`
	Timestamp time.Time     `firestore:"timestamp"`
	Sources   []citationDoc `firestore:"sources,omitempty"`
}

type conversationDoc struct {
	DocumentID   string       `firestore:"document_id"`
	UserID       string       `firestore:"user_id"`
	CreatedAt    time.Time    `firestore:"created_at"`
	UpdatedAt    time.Time    `firestore:"updated_at"`
	MessageCount int          `firestore:"message_count"`
	Messages     []messageDoc `firestore:"messages,omitempty"`
}

// ConversationStore keeps each conversation as one document with its
// messages embedded.
type ConversationStore struct {
	client *firestore.Client
	clock  func() time.Time
}

func NewConversationStore(client *firestore.Client) *ConversationStore {
	return &ConversationStore{
		client: client,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *ConversationStore) collection() *firestore.CollectionRef {
	return s.client.Collection(conversationsCollection)
}

func (s *ConversationStore) Create(ctx context.Context, conv *domain.Conversation) error {
	if err := domain.ValidateConversation(conv); err != nil {
		return domain.ErrMissingRequiredField.Wrap(err)
	}
	if _, err := s.collection().Doc(conv.ID).Create(ctx, toConversationDoc(conv)); err != nil {
		if isAlreadyExists(err) {
			return domain.ErrConversationAlreadyExists
		}
		return err
	}
	return nil
}

func (s *ConversationStore) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	snap, err := s.collection().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return decodeConversation(snap)
}

// AppendTurn runs read-modify-write in a transaction; Firestore retries it
// when another writer touched the conversation first.
func (s *ConversationStore) AppendTurn(ctx context.Context, conversationID string, user, assistant domain.Message) (*domain.Conversation, error) {
	var out *domain.Conversation
	ref := s.collection().Doc(conversationID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return domain.ErrConversationNotFound
			}
			return err
		}
		conv, err := decodeConversation(snap)
		if err != nil {
			return err
		}
		if err := conv.AppendTurn(user, assistant, s.clock()); err != nil {
			return err
		}
		if err := tx.Set(ref, toConversationDoc(conv)); err != nil {
			return err
		}
		out = conv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ConversationStore) ListByDocument(ctx context.Context, documentID, userID string, cursor *pagination.Cursor, limit int) ([]*domain.ConversationSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	q := s.collection().
		Select("document_id", "user_id", "created_at", "updated_at", "message_count").
		Where("document_id", "==", documentID).
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc)
	if cursor != nil {
		q = q.StartAfter(cursor.Timestamp, cursor.LastID)
	}

	snaps, err := q.Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ConversationSummary, 0, len(snaps))
	for _, snap := range snaps {
		var d conversationDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		out = append(out, &domain.ConversationSummary{
			ID:           snap.Ref.ID,
			DocumentID:   d.DocumentID,
			UserID:       d.UserID,
			MessageCount: d.MessageCount,
			CreatedAt:    d.CreatedAt,
			UpdatedAt:    d.UpdatedAt,
		})
	}
	return out, nil
}

func (s *ConversationStore) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	snaps, err := s.collection().Where("document_id", "==", documentID).Documents(ctx).GetAll()
	if err != nil {
		return 0, err
	}
	if err := deleteAll(ctx, s.client, snaps); err != nil {
		return 0, err
	}
	return len(snaps), nil
}

func toConversationDoc(c *domain.Conversation) conversationDoc {
	d := conversationDoc{
		DocumentID:   c.DocumentID,
		UserID:       c.UserID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
		Messages:     make([]messageDoc, 0, len(c.Messages)),
	}
	for _, m := range c.Messages {
		md := messageDoc{ID: m.ID, Role: string(m.Role), Content: m.Content, Timestamp: m.Timestamp}
		for _, src := range m.Sources {
			md.Sources = append(md.Sources, citationDoc{
				PassageID:  src.PassageID,
				Title:      src.Title,
				Snippet:    src.Snippet,
				StartIndex: src.Location.StartIndex,
				EndIndex:   src.Location.EndIndex,
				Confidence: src.Confidence,
			})
		}
		d.Messages = append(d.Messages, md)
	}
	return d
}

func decodeConversation(snap *firestore.DocumentSnapshot) (*domain.Conversation, error) {
	var d conversationDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	c := &domain.Conversation{
		ID:         snap.Ref.ID,
		DocumentID: d.DocumentID,
		UserID:     d.UserID,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		Messages:   make([]domain.Message, 0, len(d.Messages)),
	}
	for _, md := range d.Messages {
		m := domain.Message{ID: md.ID, Role: domain.Role(md.Role), Content: md.Content, Timestamp: md.Timestamp}
		for _, src := range md.Sources {
			m.Sources = append(m.Sources, domain.SourceCitation{
				PassageID:  src.PassageID,
				Title:      src.Title,
				Snippet:    src.Snippet,
				Location:   domain.Location{StartIndex: src.StartIndex, EndIndex: src.EndIndex},
				Confidence: src.Confidence,
			})
		}
		c.Messages = append(c.Messages, m)
	}
	return c, nil
}
