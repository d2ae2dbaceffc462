package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner runs a function against repositories that share one transaction.
// Import uses it so a document, its analysis and the invalidated index change
// together.
type TxRunner struct {
	pool       *pgxpool.Pool
	dimensions int
}

func NewTxRunner(pool *pgxpool.Pool, dimensions int) *TxRunner {
	return &TxRunner{pool: pool, dimensions: dimensions}
}

// WithTx commits when fn returns nil and rolls back on error or panic.
func (r *TxRunner) WithTx(ctx context.Context, fn func(repos *TxRepositories) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(&TxRepositories{tx: tx, dimensions: r.dimensions}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// TxRepositories hands out repositories bound to one transaction
type TxRepositories struct {
	tx         pgx.Tx
	dimensions int
}

func (r *TxRepositories) Documents() *DocumentRepository {
	return NewDocumentRepositoryWithTx(r.tx)
}

func (r *TxRepositories) Embeddings() *EmbeddingRepository {
	return NewEmbeddingRepositoryWithTx(r.tx, r.dimensions)
}

func (r *TxRepositories) Conversations() *ConversationRepository {
	return NewConversationRepositoryWithTx(r.tx)
}
