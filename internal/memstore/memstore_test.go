package memstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/memstore"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/cloo-solutions/docqa/internal/service"
)

var (
	_ service.EmbeddingStore    = (*memstore.EmbeddingStore)(nil)
	_ service.ConversationStore = (*memstore.ConversationStore)(nil)
	_ service.DocumentStore     = (*memstore.DocumentStore)(nil)
)

func TestEmbeddingStore_PutGetExists(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewEmbeddingStore(2)

	exists, err := store.Exists(ctx, "doc1")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := store.GetByDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Empty(t, got)

	p := domain.Passage{ID: "p1", Title: "Rent", Text: "Rent is due monthly."}
	batch := []*domain.PassageEmbedding{
		domain.NewPassageEmbedding("doc1", p, []float32{1, 0}),
		domain.NewTitleEmbedding("doc1", p, []float32{0, 1}),
	}
	require.NoError(t, store.Put(ctx, batch))

	exists, err = store.Exists(ctx, "doc1")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err = store.GetByDocument(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].PassageID)
	assert.Equal(t, "p1-title", got[1].PassageID)

	// returned values are copies
	got[0].Vector[0] = 42
	again, _ := store.GetByDocument(ctx, "doc1")
	assert.Equal(t, float32(1), again[0].Vector[0])
}

func TestEmbeddingStore_RejectsMalformedBatch(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewEmbeddingStore(3)

	p := domain.Passage{ID: "p1"}
	err := store.Put(ctx, []*domain.PassageEmbedding{
		domain.NewPassageEmbedding("doc1", p, []float32{1, 0, 0}),
		domain.NewTitleEmbedding("doc1", p, []float32{}),
	})
	assert.ErrorIs(t, err, domain.ErrMalformedVector)

	exists, err := store.Exists(ctx, "doc1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 0, store.PutCount())
}

func TestEmbeddingStore_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewEmbeddingStore(0)

	require.NoError(t, store.Put(ctx, []*domain.PassageEmbedding{
		domain.NewPassageEmbedding("doc1", domain.Passage{ID: "a"}, []float32{1}),
	}))

	n, err := store.DeleteByDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	exists, _ := store.Exists(ctx, "doc1")
	assert.False(t, exists)
}

func newTurn(i int) (domain.Message, domain.Message) {
	return domain.NewUserMessage(fmt.Sprintf("u%d", i), fmt.Sprintf("question %d", i)),
		domain.NewAssistantMessage(fmt.Sprintf("a%d", i), fmt.Sprintf("answer %d", i), nil)
}

func seededConversation(id string) *domain.Conversation {
	conv := domain.NewConversation(id, "doc1", "user1", time.Now().UTC())
	u, a := newTurn(0)
	_ = conv.AppendTurn(u, a, time.Now().UTC())
	return conv
}

func TestConversationStore_CreateFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewConversationStore()

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Create(ctx, seededConversation("conv1"))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrConversationAlreadyExists)
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, store.Count())
}

func TestConversationStore_AppendTurnIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewConversationStore()
	require.NoError(t, store.Create(ctx, seededConversation("conv1")))

	const turns = 20
	var wg sync.WaitGroup
	for i := 1; i <= turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, a := newTurn(i)
			_, err := store.AppendTurn(ctx, "conv1", u, a)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	conv, err := store.GetByID(ctx, "conv1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2*(turns+1))
	require.NoError(t, domain.ValidateConversation(conv))

	for i := 0; i < len(conv.Messages); i += 2 {
		userN := conv.Messages[i].ID[1:]
		assistantN := conv.Messages[i+1].ID[1:]
		assert.Equal(t, userN, assistantN, "turn %d interleaved", i/2)
	}
}

func TestConversationStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewConversationStore()

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	u, a := newTurn(1)
	_, err = store.AppendTurn(ctx, "missing", u, a)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestConversationStore_ListByDocument(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewConversationStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		conv := domain.NewConversation(fmt.Sprintf("c%d", i), "doc1", "user1", base.Add(time.Duration(i)*time.Minute))
		u, a := newTurn(i)
		require.NoError(t, conv.AppendTurn(u, a, conv.CreatedAt))
		require.NoError(t, store.Create(ctx, conv))
	}
	other := domain.NewConversation("x", "doc1", "user2", base)
	u, a := newTurn(9)
	require.NoError(t, other.AppendTurn(u, a, base))
	require.NoError(t, store.Create(ctx, other))

	page, err := store.ListByDocument(ctx, "doc1", "user1", nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c4", page[0].ID)
	assert.Equal(t, "c3", page[1].ID)
	assert.Equal(t, 2, page[0].MessageCount)

	cursor := &pagination.Cursor{LastID: page[1].ID, Timestamp: page[1].CreatedAt}
	page, err = store.ListByDocument(ctx, "doc1", "user1", cursor, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "c2", page[0].ID)
	assert.Equal(t, "c0", page[2].ID)
}

func TestConversationStore_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewConversationStore()
	require.NoError(t, store.Create(ctx, seededConversation("c1")))
	require.NoError(t, store.Create(ctx, seededConversation("c2")))

	n, err := store.DeleteByDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, store.Count())
}

func TestDocumentStore(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewDocumentStore()

	_, err := store.GetDocument(ctx, "doc1")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	_, err = store.GetAnalysis(ctx, "doc1")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	require.NoError(t, store.AddDocument(domain.NewDocument("doc1", "user1", "Lease", "lease", "CA", time.Now())))
	_, err = store.GetAnalysis(ctx, "doc1")
	assert.ErrorIs(t, err, domain.ErrAnalysisNotFound)

	require.NoError(t, store.AddAnalysis(&domain.Analysis{
		DocumentID: "doc1",
		Passages:   []domain.Passage{{ID: "p1", Title: "Rent"}},
	}))
	analysis, err := store.GetAnalysis(ctx, "doc1")
	require.NoError(t, err)
	assert.Len(t, analysis.Passages, 1)

	assert.ErrorIs(t, store.AddAnalysis(&domain.Analysis{DocumentID: "nope"}), domain.ErrDocumentNotFound)
}
