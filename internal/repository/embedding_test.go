//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestEmbeddingRepository_PutAndGet(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewEmbeddingRepository(pool, testDimensions)

	exists, err := repo.Exists(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Put(ctx, testEmbeddings("doc-1")))

	exists, err = repo.Exists(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := repo.GetByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "p1", got[0].PassageID)
	assert.Equal(t, "p1-title", got[1].PassageID)
	assert.Equal(t, []float32{1, 0, 0}, got[0].Vector)
	assert.Equal(t, "Rent", got[0].Metadata.Title)
	assert.Equal(t, domain.RiskLevelHigh, got[2].Metadata.RiskLevel)
	assert.Equal(t, 21, got[2].Metadata.Location.StartIndex)
}

func TestEmbeddingRepository_PutReplacesBatch(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewEmbeddingRepository(pool, testDimensions)

	require.NoError(t, repo.Put(ctx, testEmbeddings("doc-1")))
	require.NoError(t, repo.Put(ctx, testEmbeddings("doc-1")[:2]))

	got, err := repo.GetByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEmbeddingRepository_ConcurrentPutsForOneDocument(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	// separate repositories stand in for separate replicas sharing the database
	var g errgroup.Group
	for range 8 {
		repo := NewEmbeddingRepository(pool, testDimensions)
		g.Go(func() error {
			return repo.Put(ctx, testEmbeddings("doc-1"))
		})
	}
	require.NoError(t, g.Wait())

	got, err := NewEmbeddingRepository(pool, testDimensions).GetByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestEmbeddingRepository_PutRejectsInvalidBatch(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewEmbeddingRepository(pool, testDimensions)

	batch := testEmbeddings("doc-1")
	batch[3].Vector = []float32{1, 2}

	err := repo.Put(ctx, batch)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedVector)

	// nothing from the rejected batch was written
	exists, err := repo.Exists(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEmbeddingRepository_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewEmbeddingRepository(pool, testDimensions)

	require.NoError(t, repo.Put(ctx, testEmbeddings("doc-1")))
	require.NoError(t, repo.Put(ctx, testEmbeddings("doc-2")))

	n, err := repo.DeleteByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	exists, err := repo.Exists(ctx, "doc-2")
	require.NoError(t, err)
	assert.True(t, exists)
}
