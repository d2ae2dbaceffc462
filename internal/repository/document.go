package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository reads documents and their completed analyses.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

// Save upserts the document row
func (r *DocumentRepository) Save(ctx context.Context, d *domain.Document) error {
	if err := domain.ValidateDocument(d); err != nil {
		return domain.ErrMissingRequiredField.Wrap(err)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, user_id, title, doc_type, jurisdiction, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET user_id = EXCLUDED.user_id, title = EXCLUDED.title,
		     doc_type = EXCLUDED.doc_type, jurisdiction = EXCLUDED.jurisdiction`,
		d.ID, d.UserID, d.Title, d.Type, d.Jurisdiction, d.CreatedAt,
	)
	return err
}

// SaveAnalysis replaces the analysis of a document with a. The document
// must already exist.
func (r *DocumentRepository) SaveAnalysis(ctx context.Context, a *domain.Analysis) error {
	if err := domain.ValidateAnalysis(a); err != nil {
		return domain.ErrMissingRequiredField.Wrap(err)
	}

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, a.DocumentID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrDocumentNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM document_analyses WHERE document_id = $1`, a.DocumentID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO document_analyses (document_id, completed_at) VALUES ($1, $2)`,
			a.DocumentID, a.CompletedAt,
		); err != nil {
			return err
		}
		for i, p := range a.Passages {
			if _, err := tx.Exec(ctx,
				`INSERT INTO analysis_passages (document_id, passage_id, position, title, body, explanation, risk_level, start_index, end_index)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				a.DocumentID, p.ID, i, p.Title, p.Text, p.Explanation, string(p.RiskLevel), p.Location.StartIndex, p.Location.EndIndex,
			); err != nil {
				return fmt.Errorf("insert passage %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, title, doc_type, jurisdiction, created_at FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.UserID, &d.Title, &d.Type, &d.Jurisdiction, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetAnalysis returns domain.ErrDocumentNotFound for an unknown document and
// domain.ErrAnalysisNotFound for a document that was never analyzed.
func (r *DocumentRepository) GetAnalysis(ctx context.Context, documentID string) (*domain.Analysis, error) {
	a := domain.Analysis{DocumentID: documentID}
	err := r.db.QueryRow(ctx,
		`SELECT completed_at FROM document_analyses WHERE document_id = $1`,
		documentID,
	).Scan(&a.CompletedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if _, derr := r.GetDocument(ctx, documentID); derr != nil {
			return nil, derr
		}
		return nil, domain.ErrAnalysisNotFound
	}

	rows, err := r.db.Query(ctx,
		`SELECT passage_id, title, body, explanation, risk_level, start_index, end_index
		 FROM analysis_passages WHERE document_id = $1 ORDER BY position`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	a.Passages = make([]domain.Passage, 0)
	for rows.Next() {
		var p domain.Passage
		var risk string
		if err := rows.Scan(&p.ID, &p.Title, &p.Text, &p.Explanation, &risk, &p.Location.StartIndex, &p.Location.EndIndex); err != nil {
			return nil, err
		}
		p.RiskLevel = domain.RiskLevel(risk)
		a.Passages = append(a.Passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Delete removes the document. Its analysis, embeddings and conversations
// are removed with it by the database.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
