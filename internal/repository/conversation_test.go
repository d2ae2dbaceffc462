//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConversation(id, documentID, userID string, createdAt time.Time) *domain.Conversation {
	conv := domain.NewConversation(id, documentID, userID, createdAt)
	user := domain.NewUserMessage(id+"-q1", "When is rent due?")
	answer := domain.NewAssistantMessage(id+"-a1", "On the first.", []domain.SourceCitation{
		{PassageID: "p1", Title: "Rent", Snippet: "Rent is due monthly.", Confidence: 0.9},
	})
	_ = conv.AppendTurn(user, answer, createdAt)
	return conv
}

func TestConversationRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewConversationRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Create(ctx, newTestConversation("c1", "doc-1", "user-1", now)))

	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, "user-1", got.UserID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, domain.RoleUser, got.Messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, got.Messages[1].Role)
	require.Len(t, got.Messages[1].Sources, 1)
	assert.Equal(t, "p1", got.Messages[1].Sources[0].PassageID)
	assert.Empty(t, got.Messages[0].Sources)
}

func TestConversationRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewConversationRepository(pool)

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestConversationRepository_CreateFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewConversationRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Create(ctx, newTestConversation("shared", "doc-1", "user-1", now))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrConversationAlreadyExists), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)

	got, err := repo.GetByID(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
}

func TestConversationRepository_AppendTurn(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewConversationRepository(pool)

	created := time.Now().UTC().Truncate(time.Microsecond).Add(time.Hour)
	require.NoError(t, repo.Create(ctx, newTestConversation("c1", "doc-1", "user-1", created)))

	got, err := repo.AppendTurn(ctx, "c1",
		domain.NewUserMessage("q2", "Can I have a pet?"),
		domain.NewAssistantMessage("a2", "Only with consent.", nil),
	)
	require.NoError(t, err)
	require.Len(t, got.Messages, 4)
	// the store clock is behind the last message, so the turn reuses its timestamp
	assert.True(t, got.Messages[2].Timestamp.Equal(created))
	assert.True(t, got.Messages[3].Timestamp.Equal(created))

	reloaded, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, reloaded.Messages, 4)
	assert.Equal(t, "q2", reloaded.Messages[2].ID)
	assert.True(t, reloaded.UpdatedAt.Equal(created))
}

func TestConversationRepository_AppendTurn_Concurrent(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewConversationRepository(pool)
	require.NoError(t, repo.Create(ctx, newTestConversation("c1", "doc-1", "user-1", time.Now().UTC().Truncate(time.Microsecond))))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.AppendTurn(ctx, "c1",
				domain.NewUserMessage(fmt.Sprintf("q-%d", i), "question"),
				domain.NewAssistantMessage(fmt.Sprintf("a-%d", i), "answer", nil),
			)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 12)
	require.NoError(t, domain.ValidateConversation(got))
}

func TestConversationRepository_AppendTurn_NotFound(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewConversationRepository(pool)

	_, err := repo.AppendTurn(ctx, "missing",
		domain.NewUserMessage("q", "question"),
		domain.NewAssistantMessage("a", "answer", nil),
	)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestConversationRepository_ListByDocument(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewConversationRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("c%d", i)
		require.NoError(t, repo.Create(ctx, newTestConversation(id, "doc-1", "user-1", base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.Create(ctx, newTestConversation("other-user", "doc-1", "user-2", base)))
	require.NoError(t, repo.Create(ctx, newTestConversation("other-doc", "doc-2", "user-1", base)))

	page, err := repo.ListByDocument(ctx, "doc-1", "user-1", nil, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "c4", page[0].ID)
	assert.Equal(t, "c2", page[2].ID)
	assert.Equal(t, 2, page[0].MessageCount)

	last := page[len(page)-1]
	cursor := &pagination.Cursor{LastID: last.ID, Timestamp: last.CreatedAt}
	page, err = repo.ListByDocument(ctx, "doc-1", "user-1", cursor, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c1", page[0].ID)
	assert.Equal(t, "c0", page[1].ID)
}

func TestConversationRepository_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewConversationRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, repo.Create(ctx, newTestConversation("c1", "doc-1", "user-1", now)))
	require.NoError(t, repo.Create(ctx, newTestConversation("c2", "doc-1", "user-2", now)))
	require.NoError(t, repo.Create(ctx, newTestConversation("c3", "doc-2", "user-1", now)))

	n, err := repo.DeleteByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = repo.GetByID(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	_, err = repo.GetByID(ctx, "c3")
	assert.NoError(t, err)
}
