// Package memstore holds in-process implementations of the docqa stores.
// They back the "memory" store backend and the service tests.
package memstore

import (
	"context"
	"sync"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// EmbeddingStore keeps passage embeddings in memory
type EmbeddingStore struct {
	mu         sync.RWMutex
	byDocument map[string][]*domain.PassageEmbedding
	dimensions int
	puts       int
}

// NewEmbeddingStore creates an EmbeddingStore that validates vectors
// against dimensions (<= 0 disables the check).
func NewEmbeddingStore(dimensions int) *EmbeddingStore {
	return &EmbeddingStore{
		byDocument: make(map[string][]*domain.PassageEmbedding),
		dimensions: dimensions,
	}
}

// Put replaces the document's embeddings with the batch. An invalid batch
// stores nothing.
func (s *EmbeddingStore) Put(ctx context.Context, embeddings []*domain.PassageEmbedding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateEmbeddingBatch(embeddings, s.dimensions); err != nil {
		return err
	}

	batch := make([]*domain.PassageEmbedding, len(embeddings))
	for i, e := range embeddings {
		batch[i] = cloneEmbedding(e)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDocument[embeddings[0].DocumentID] = batch
	s.puts++
	return nil
}

// GetByDocument returns the document's embeddings in insertion order
func (s *EmbeddingStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.PassageEmbedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.byDocument[documentID]
	out := make([]*domain.PassageEmbedding, len(stored))
	for i, e := range stored {
		out[i] = cloneEmbedding(e)
	}
	return out, nil
}

// Exists reports whether any embedding is stored for the document
func (s *EmbeddingStore) Exists(ctx context.Context, documentID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byDocument[documentID]) > 0, nil
}

// DeleteByDocument removes the document's embeddings
func (s *EmbeddingStore) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.byDocument[documentID])
	delete(s.byDocument, documentID)
	return n, nil
}

// PutCount returns how many batches were written. Tests use it to check
// that indexing happens once.
func (s *EmbeddingStore) PutCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

func cloneEmbedding(e *domain.PassageEmbedding) *domain.PassageEmbedding {
	c := *e
	c.Vector = append([]float32(nil), e.Vector...)
	return &c
}
