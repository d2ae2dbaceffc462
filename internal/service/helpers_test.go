package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/memstore"
)

// MockEmbeddingClient mocks the embedding capability
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockGenerationClient mocks the generation capability
type MockGenerationClient struct {
	mock.Mock
}

func (m *MockGenerationClient) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	args := m.Called(ctx, prompt, params)
	return args.String(0), args.Error(1)
}

var testVocabulary = []string{"rent", "terminate", "deposit", "pet", "notice"}

// keywordEmbedder counts vocabulary words, giving stable vectors without a model
type keywordEmbedder struct {
	failOn string
	nanOn  string
	calls  atomic.Int32
}

func (k *keywordEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	k.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lower := strings.ToLower(text)
	if k.failOn != "" && strings.Contains(lower, k.failOn) {
		return nil, errors.New("embedding backend unavailable")
	}
	vec := make([]float32, len(testVocabulary))
	for i, w := range testVocabulary {
		vec[i] = float32(strings.Count(lower, w))
	}
	if k.nanOn != "" && strings.Contains(lower, k.nanOn) {
		vec[0] = float32(math.NaN())
	}
	return vec, nil
}

// recordingGenerator returns a canned answer and keeps the prompts it saw
type recordingGenerator struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
	hook    func()
}

func (g *recordingGenerator) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	hook := g.hook
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *recordingGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func leasePassages() []domain.Passage {
	return []domain.Passage{
		{
			ID:          "p1",
			Title:       "Rent",
			Text:        "Rent is due on the first of the month. Late rent incurs a fee.",
			Explanation: "Late fees on rent are high.",
			RiskLevel:   domain.RiskLevelMedium,
			Location:    domain.Location{StartIndex: 0, EndIndex: 62},
		},
		{
			ID:          "p2",
			Title:       "Termination",
			Text:        "Either party may terminate with 30 days notice.",
			Explanation: "Short notice to terminate.",
			RiskLevel:   domain.RiskLevelHigh,
			Location:    domain.Location{StartIndex: 63, EndIndex: 110},
		},
	}
}

type fixture struct {
	docs          *memstore.DocumentStore
	embeddings    *memstore.EmbeddingStore
	conversations *memstore.ConversationStore
	embedder      *keywordEmbedder
	generator     *recordingGenerator
	svc           *QAService
}

func newFixture() *fixture {
	f := &fixture{
		docs:          memstore.NewDocumentStore(),
		embeddings:    memstore.NewEmbeddingStore(len(testVocabulary)),
		conversations: memstore.NewConversationStore(),
		embedder:      &keywordEmbedder{},
		generator:     &recordingGenerator{answer: "Rent is due on the first of the month (Section 1)."},
	}

	_ = f.docs.AddDocument(domain.NewDocument("doc1", "user1", "Flat lease", "lease", "England", time.Now()))
	_ = f.docs.AddAnalysis(&domain.Analysis{DocumentID: "doc1", Passages: leasePassages()})
	_ = f.docs.AddDocument(domain.NewDocument("doc2", "user1", "Unanalyzed", "nda", "", time.Now()))

	indexer := NewIndexer(f.embeddings, f.embedder, nil, IndexerConfig{Dimensions: len(testVocabulary)})
	f.svc = NewQAService(f.docs, f.embeddings, f.conversations, f.embedder, f.generator, indexer, DefaultQAConfig())
	return f
}
