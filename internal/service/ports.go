package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// GenerationClient defines the interface for text generation
type GenerationClient interface {
	Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error)
}

// EmbeddingStore persists passage embeddings keyed by document.
//
// Put writes a whole document batch or nothing. Exists is true iff at least
// one embedding is stored for the document.
type EmbeddingStore interface {
	Put(ctx context.Context, embeddings []*domain.PassageEmbedding) error
	GetByDocument(ctx context.Context, documentID string) ([]*domain.PassageEmbedding, error)
	Exists(ctx context.Context, documentID string) (bool, error)
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
}

// ConversationStore persists conversation transcripts.
//
// Create is first-writer-wins: it returns domain.ErrConversationAlreadyExists
// when the ID is taken. AppendTurn adds a user/assistant pair atomically and
// stamps both messages; it returns domain.ErrConversationNotFound for an
// unknown ID.
type ConversationStore interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	AppendTurn(ctx context.Context, conversationID string, user, assistant domain.Message) (*domain.Conversation, error)
	ListByDocument(ctx context.Context, documentID, userID string, cursor *pagination.Cursor, limit int) ([]*domain.ConversationSummary, error)
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
}

// DocumentStore is the read-only view of analyzed documents
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	GetAnalysis(ctx context.Context, documentID string) (*domain.Analysis, error)
}

// IndexLock serializes indexing of a document across callers
type IndexLock interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// IndexLockExtender is implemented by locks whose TTL can be pushed out while
// held. The indexer extends such locks for as long as a build runs.
type IndexLockExtender interface {
	Extend(ctx context.Context, name string, ttl time.Duration) error
}
