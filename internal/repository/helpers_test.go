//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

const testDimensions = 3

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	return testutil.NewTestPool(ctx, t, pc, "../../migrations")
}

func seedDocument(ctx context.Context, t *testing.T, repo *DocumentRepository, id string) *domain.Document {
	t.Helper()
	doc := domain.NewDocument(id, "user-1", "Lease", "lease", "CA", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Save(ctx, doc))
	return doc
}

func testEmbeddings(documentID string) []*domain.PassageEmbedding {
	p1 := domain.Passage{ID: "p1", Title: "Rent", Text: "Rent is due monthly.", Explanation: "Pay on the first.", RiskLevel: domain.RiskLevelLow, Location: domain.Location{StartIndex: 0, EndIndex: 20}}
	p2 := domain.Passage{ID: "p2", Title: "Termination", Text: "Either party may terminate.", Explanation: "Sixty days notice.", RiskLevel: domain.RiskLevelHigh, Location: domain.Location{StartIndex: 21, EndIndex: 48}}
	return []*domain.PassageEmbedding{
		domain.NewPassageEmbedding(documentID, p1, []float32{1, 0, 0}),
		domain.NewTitleEmbedding(documentID, p1, []float32{0.9, 0.1, 0}),
		domain.NewPassageEmbedding(documentID, p2, []float32{0, 1, 0}),
		domain.NewTitleEmbedding(documentID, p2, []float32{0, 0.9, 0.1}),
	}
}
