package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
	"github.com/cloo-solutions/docqa/internal/vector"
)

const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.3
)

// RetrievalOptions bounds a retrieval call
type RetrievalOptions struct {
	TopK          int
	MinSimilarity float64
}

// DefaultRetrievalOptions returns the options used when answering questions
func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{TopK: DefaultTopK, MinSimilarity: DefaultMinSimilarity}
}

// RetrievalEngine ranks a document's passage embeddings against a query vector
type RetrievalEngine struct {
	store EmbeddingStore
}

// NewRetrievalEngine creates a new RetrievalEngine instance
func NewRetrievalEngine(store EmbeddingStore) *RetrievalEngine {
	return &RetrievalEngine{store: store}
}

// FindRelevant returns at most opts.TopK passages whose similarity is strictly
// greater than opts.MinSimilarity, best first. Equal scores keep store order.
// A query of the wrong dimensionality scores 0 everywhere and yields no results.
func (r *RetrievalEngine) FindRelevant(ctx context.Context, documentID string, query []float32, opts RetrievalOptions) ([]domain.RetrievedPassage, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalEngine.FindRelevant", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "retrieve",
	})
	defer span.End()

	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	embeddings, err := r.store.GetByDocument(ctx, documentID)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	return rankPassages(embeddings, query, opts), nil
}

func rankPassages(embeddings []*domain.PassageEmbedding, query []float32, opts RetrievalOptions) []domain.RetrievedPassage {
	results := make([]domain.RetrievedPassage, 0, len(embeddings))
	for _, e := range embeddings {
		if e == nil {
			continue
		}
		similarity := vector.CosineSimilarity(query, e.Vector)
		if similarity <= opts.MinSimilarity {
			continue
		}
		results = append(results, domain.RetrievedPassage{
			PassageEmbedding: *e,
			Similarity:       similarity,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results
}
