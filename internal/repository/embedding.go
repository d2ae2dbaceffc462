package repository

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingRepository stores passage embeddings in the passage_embeddings
// table. A document's batch is replaced as a unit.
type EmbeddingRepository struct {
	db         dbtx
	dimensions int
}

func NewEmbeddingRepository(pool *pgxpool.Pool, dimensions int) *EmbeddingRepository {
	return &EmbeddingRepository{db: pool, dimensions: dimensions}
}

func NewEmbeddingRepositoryWithTx(tx pgx.Tx, dimensions int) *EmbeddingRepository {
	return &EmbeddingRepository{db: tx, dimensions: dimensions}
}

func (r *EmbeddingRepository) Put(ctx context.Context, embeddings []*domain.PassageEmbedding) error {
	if err := domain.ValidateEmbeddingBatch(embeddings, r.dimensions); err != nil {
		return err
	}
	documentID := embeddings[0].DocumentID

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		// concurrent Puts for one document, possibly from other replicas, run one after another
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "passage_embeddings:"+documentID); err != nil {
			return fmt.Errorf("lock document embeddings: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM passage_embeddings WHERE document_id = $1`, documentID); err != nil {
			return fmt.Errorf("clear embeddings: %w", err)
		}

		batch := &pgx.Batch{}
		for i, e := range embeddings {
			batch.Queue(
				`INSERT INTO passage_embeddings (document_id, passage_id, position, content, embedding, title, risk_level, start_index, end_index)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				e.DocumentID, e.PassageID, i, e.Text, pgvector.NewVector(e.Vector),
				e.Metadata.Title, string(e.Metadata.RiskLevel), e.Metadata.Location.StartIndex, e.Metadata.Location.EndIndex,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range embeddings {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert embedding: %w", err)
			}
		}
		return br.Close()
	})
}

func (r *EmbeddingRepository) GetByDocument(ctx context.Context, documentID string) ([]*domain.PassageEmbedding, error) {
	rows, err := r.db.Query(ctx,
		`SELECT document_id, passage_id, content, embedding::text, title, risk_level, start_index, end_index
		 FROM passage_embeddings WHERE document_id = $1 ORDER BY position`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PassageEmbedding
	for rows.Next() {
		var e domain.PassageEmbedding
		var raw, risk string
		if err := rows.Scan(&e.DocumentID, &e.PassageID, &e.Text, &raw, &e.Metadata.Title, &risk,
			&e.Metadata.Location.StartIndex, &e.Metadata.Location.EndIndex); err != nil {
			return nil, err
		}
		var vec pgvector.Vector
		if err := vec.Scan(raw); err != nil {
			return nil, domain.ErrMalformedVector.Wrap(err)
		}
		e.Vector = vec.Slice()
		e.Metadata.RiskLevel = domain.RiskLevel(risk)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *EmbeddingRepository) Exists(ctx context.Context, documentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM passage_embeddings WHERE document_id = $1)`,
		documentID,
	).Scan(&exists)
	return exists, err
}

func (r *EmbeddingRepository) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM passage_embeddings WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}
