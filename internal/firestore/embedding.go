package firestore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/logging"
	"github.com/google/uuid"
)

type embeddingSet struct {
	Generation string    `firestore:"generation"`
	Count      int       `firestore:"count"`
	UpdatedAt  time.Time `firestore:"updated_at"`
}

type embeddingDoc struct {
	Generation string             `firestore:"generation"`
	Position   int                `firestore:"position"`
	DocumentID string             `firestore:"document_id"`
	PassageID  string             `firestore:"passage_id"`
	Text       string             `firestore:"text"`
	Vector     firestore.Vector32 `firestore:"vector"`
	Title      string             `firestore:"title"`
	RiskLevel  string             `firestore:"risk_level"`
	StartIndex int                `firestore:"start_index"`
	EndIndex   int                `firestore:"end_index"`
}

// EmbeddingStore keeps one generation of embeddings per document. Put
// writes a new generation and then flips embedding_sets/{documentID} to it
// in a transaction, so readers see either the old batch or the new one.
type EmbeddingStore struct {
	client     *firestore.Client
	dimensions int
}

func NewEmbeddingStore(client *firestore.Client, dimensions int) *EmbeddingStore {
	return &EmbeddingStore{client: client, dimensions: dimensions}
}

func (s *EmbeddingStore) setRef(documentID string) *firestore.DocumentRef {
	return s.client.Collection(embeddingSetsCollection).Doc(documentID)
}

func (s *EmbeddingStore) embeddings(documentID string) *firestore.CollectionRef {
	return s.setRef(documentID).Collection(embeddingsCollection)
}

func (s *EmbeddingStore) Put(ctx context.Context, batch []*domain.PassageEmbedding) error {
	if err := domain.ValidateEmbeddingBatch(batch, s.dimensions); err != nil {
		return err
	}
	documentID := batch[0].DocumentID
	generation := uuid.NewString()
	coll := s.embeddings(documentID)

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(batch))
	for i, e := range batch {
		job, err := bw.Set(coll.Doc(fmt.Sprintf("%s_%05d", generation, i)), embeddingDoc{
			Generation: generation,
			Position:   i,
			DocumentID: e.DocumentID,
			PassageID:  e.PassageID,
			Text:       e.Text,
			Vector:     firestore.Vector32(e.Vector),
			Title:      e.Metadata.Title,
			RiskLevel:  string(e.Metadata.RiskLevel),
			StartIndex: e.Metadata.Location.StartIndex,
			EndIndex:   e.Metadata.Location.EndIndex,
		})
		if err != nil {
			bw.End()
			s.deleteGeneration(ctx, documentID, generation)
			return fmt.Errorf("queue embedding write: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			s.deleteGeneration(ctx, documentID, generation)
			return fmt.Errorf("write embedding: %w", err)
		}
	}

	var previous string
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.setRef(documentID))
		if err != nil && !isNotFound(err) {
			return err
		}
		if err == nil {
			var cur embeddingSet
			if err := snap.DataTo(&cur); err != nil {
				return err
			}
			previous = cur.Generation
		}
		return tx.Set(s.setRef(documentID), embeddingSet{
			Generation: generation,
			Count:      len(batch),
			UpdatedAt:  time.Now().UTC(),
		})
	})
	if err != nil {
		s.deleteGeneration(ctx, documentID, generation)
		return fmt.Errorf("publish embeddings: %w", err)
	}

	if previous != "" && previous != generation {
		s.deleteGeneration(ctx, documentID, previous)
	}
	return nil
}

func (s *EmbeddingStore) current(ctx context.Context, documentID string) (*embeddingSet, error) {
	snap, err := s.setRef(documentID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var set embeddingSet
	if err := snap.DataTo(&set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (s *EmbeddingStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.PassageEmbedding, error) {
	set, err := s.current(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return []*domain.PassageEmbedding{}, nil
	}

	snaps, err := s.embeddings(documentID).Where("generation", "==", set.Generation).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	docs := make([]embeddingDoc, 0, len(snaps))
	for _, snap := range snaps {
		var d embeddingDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Position < docs[j].Position })

	out := make([]*domain.PassageEmbedding, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.PassageEmbedding{
			DocumentID: d.DocumentID,
			PassageID:  d.PassageID,
			Text:       d.Text,
			Vector:     []float32(d.Vector),
			Metadata: domain.EmbeddingMetadata{
				Title:     d.Title,
				RiskLevel: domain.RiskLevel(d.RiskLevel),
				Location:  domain.Location{StartIndex: d.StartIndex, EndIndex: d.EndIndex},
			},
		})
	}
	return out, nil
}

func (s *EmbeddingStore) Exists(ctx context.Context, documentID string) (bool, error) {
	set, err := s.current(ctx, documentID)
	if err != nil {
		return false, err
	}
	return set != nil && set.Count > 0, nil
}

func (s *EmbeddingStore) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	set, err := s.current(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if set == nil {
		return 0, nil
	}
	if _, err := s.setRef(documentID).Delete(ctx); err != nil {
		return 0, err
	}

	snaps, err := s.embeddings(documentID).Documents(ctx).GetAll()
	if err != nil {
		return 0, err
	}
	if err := deleteAll(ctx, s.client, snaps); err != nil {
		return 0, err
	}
	return set.Count, nil
}

// deleteGeneration removes the documents of one generation. Failures leave
// unreferenced documents behind, which readers never see.
func (s *EmbeddingStore) deleteGeneration(ctx context.Context, documentID, generation string) {
	snaps, err := s.embeddings(documentID).Where("generation", "==", generation).Documents(ctx).GetAll()
	if err == nil {
		err = deleteAll(ctx, s.client, snaps)
	}
	if err != nil {
		logging.From(ctx).Warn("failed to delete embedding generation",
			"document_id", documentID, "generation", generation, "error", err)
	}
}

func deleteAll(ctx context.Context, client *firestore.Client, snaps []*firestore.DocumentSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	bw := client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(snaps))
	for _, snap := range snaps {
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return err
		}
		jobs = append(jobs, job)
	}
	bw.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return err
		}
	}
	return nil
}
