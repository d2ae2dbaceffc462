package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db    dbtx
	clock func() time.Time
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool, clock: utcNow}
}

func NewConversationRepositoryWithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{db: tx, clock: utcNow}
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Create inserts the conversation and its messages. The first writer of an
// ID wins; later writers get domain.ErrConversationAlreadyExists.
func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	if err := domain.ValidateConversation(conv); err != nil {
		return domain.ErrMissingRequiredField.Wrap(err)
	}

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx,
			`INSERT INTO conversations (id, document_id, user_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO NOTHING`,
			conv.ID, conv.DocumentID, conv.UserID, conv.CreatedAt, conv.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if cmdTag.RowsAffected() == 0 {
			return domain.ErrConversationAlreadyExists
		}
		return insertMessages(ctx, tx, conv.ID, 0, conv.Messages)
	})
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	return getConversation(ctx, r.db, id, false)
}

// AppendTurn locks the conversation row, stamps the pair no earlier than the
// last stored message and inserts both messages in one transaction.
func (r *ConversationRepository) AppendTurn(ctx context.Context, conversationID string, user, assistant domain.Message) (*domain.Conversation, error) {
	var out *domain.Conversation
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		conv, err := getConversation(ctx, tx, conversationID, true)
		if err != nil {
			return err
		}
		next := len(conv.Messages)
		if err := conv.AppendTurn(user, assistant, r.clock()); err != nil {
			return err
		}
		if err := insertMessages(ctx, tx, conv.ID, next, conv.Messages[next:]); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE conversations SET updated_at = $1 WHERE id = $2`,
			conv.UpdatedAt, conv.ID,
		); err != nil {
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

func (r *ConversationRepository) ListByDocument(ctx context.Context, documentID, userID string, cursor *pagination.Cursor, limit int) ([]*domain.ConversationSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT c.id, c.document_id, c.user_id, c.created_at, c.updated_at,
			        (SELECT COUNT(*) FROM conversation_messages m WHERE m.conversation_id = c.id)
			 FROM conversations c
			 WHERE c.document_id = $1 AND c.user_id = $2 AND (c.created_at, c.id) < ($3, $4)
			 ORDER BY c.created_at DESC, c.id DESC
			 LIMIT $5`,
			documentID, userID, cursor.Timestamp, cursor.LastID, limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT c.id, c.document_id, c.user_id, c.created_at, c.updated_at,
			        (SELECT COUNT(*) FROM conversation_messages m WHERE m.conversation_id = c.id)
			 FROM conversations c
			 WHERE c.document_id = $1 AND c.user_id = $2
			 ORDER BY c.created_at DESC, c.id DESC
			 LIMIT $3`,
			documentID, userID, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]*domain.ConversationSummary, 0)
	for rows.Next() {
		var s domain.ConversationSummary
		var count int64
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.UserID, &s.CreatedAt, &s.UpdatedAt, &count); err != nil {
			return nil, err
		}
		s.MessageCount = int(count)
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}

// DeleteByDocument removes conversations about the document; their messages
// go with them through the foreign key.
func (r *ConversationRepository) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM conversations WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

func getConversation(ctx context.Context, db dbtx, id string, forUpdate bool) (*domain.Conversation, error) {
	query := `SELECT id, document_id, user_id, created_at, updated_at FROM conversations WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var c domain.Conversation
	err := db.QueryRow(ctx, query, id).Scan(&c.ID, &c.DocumentID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}

	rows, err := db.Query(ctx,
		`SELECT id, role, content, sources, created_at
		 FROM conversation_messages WHERE conversation_id = $1 ORDER BY seq`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Messages = make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		var role string
		var sources []byte
		if err := rows.Scan(&m.ID, &role, &m.Content, &sources, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &m.Sources); err != nil {
				return nil, fmt.Errorf("decode sources of message %s: %w", m.ID, err)
			}
		}
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}

func insertMessages(ctx context.Context, tx pgx.Tx, conversationID string, startSeq int, messages []domain.Message) error {
	for i, m := range messages {
		var sources []byte
		if len(m.Sources) > 0 {
			var err error
			if sources, err = json.Marshal(m.Sources); err != nil {
				return fmt.Errorf("encode sources of message %s: %w", m.ID, err)
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversation_messages (conversation_id, seq, id, role, content, sources, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			conversationID, startSeq+i, m.ID, string(m.Role), m.Content, sources, m.Timestamp,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return nil
}
