//go:build e2e

package e2e

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/cli/client"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/lock"
	"github.com/cloo-solutions/docqa/internal/logging"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/server"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/cloo-solutions/docqa/internal/testutil"
)

var vocabulary = []string{"rent", "terminate", "deposit", "pet"}

// wordEmbedder maps text to vocabulary counts so retrieval is deterministic
type wordEmbedder struct {
	calls atomic.Int64
}

func (e *wordEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	lower := strings.ToLower(text)
	vec := make([]float32, len(vocabulary))
	for i, w := range vocabulary {
		vec[i] = float32(strings.Count(lower, w))
	}
	// keep every vector non-zero
	vec[len(vec)-1] += 0.01
	return vec, nil
}

// echoGenerator answers with the first line of the excerpts it was given
type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	if strings.Contains(prompt, "JSON array") {
		return "```json\n[\"When is rent due?\", \"Can I keep a pet?\", \"How do I terminate?\"]\n```", nil
	}
	return "Based on the lease, rent is due monthly (Rent).", nil
}

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	PostgresC *testutil.PostgresContainer
	RustFSC   *testutil.RustFSContainer
	Redis     *miniredis.Miniredis
	Pool      *pgxpool.Pool
	Analyses  *storage.AnalysisStore
	Embedder  *wordEmbedder
	Server    *httptest.Server
}

// SetupE2EEnv starts Postgres and RustFS, then serves the API in-process with
// Postgres stores, S3 analyses and a Redis index lock.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	analyses, err := storage.NewAnalysisStore(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          "e2e-analyses",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := analyses.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	dims := len(vocabulary)
	embeddings := repository.NewEmbeddingRepository(pool, dims)
	conversations := repository.NewConversationRepository(pool)
	embedder := &wordEmbedder{}

	indexer := service.NewIndexer(embeddings, embedder, lock.NewRedisLock(redisClient), service.IndexerConfig{
		Dimensions:  dims,
		Concurrency: 2,
		LockTTL:     30 * time.Second,
		LockWait:    30 * time.Second,
	})
	svc := service.NewQAService(analyses, embeddings, conversations, embedder, echoGenerator{}, indexer, service.DefaultQAConfig())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(server.NewRouter(server.RouterConfig{
		QAHandler:  handlers.NewQAHandler(svc),
		Logger:     logger,
		UserHasher: logging.NewUserHasher("e2e"),
		Ready:      pool.Ping,
	}))

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: pgC,
		RustFSC:   s3C,
		Redis:     mr,
		Pool:      pool,
		Analyses:  analyses,
		Embedder:  embedder,
		Server:    srv,
	}
}

// Cleanup stops the API server; containers and the pool go with t.Cleanup
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
}

// Client returns an API client acting as userID
func (e *E2ETestEnv) Client(userID string) *client.APIClient {
	return client.NewAPIClientWithConfig(userID, e.Server.URL)
}

// SeedLease uploads a three-passage lease and its analysis
func (e *E2ETestEnv) SeedLease(documentID string) *domain.Analysis {
	e.T.Helper()

	doc := domain.NewDocument(documentID, "owner-1", "Flat lease", "lease", "CA", time.Now().UTC())
	analysis := &domain.Analysis{
		DocumentID: documentID,
		Passages: []domain.Passage{
			{
				ID: "p-rent", Title: "Rent", Text: "Rent is due on the first day of each month. Late rent incurs a fee.",
				Explanation: "Pay rent monthly.", RiskLevel: domain.RiskLevelLow,
				Location: domain.Location{StartIndex: 0, EndIndex: 68},
			},
			{
				ID: "p-term", Title: "Termination", Text: "Either party may terminate the lease with sixty days written notice.",
				Explanation: "You can terminate with notice.", RiskLevel: domain.RiskLevelMedium,
				Location: domain.Location{StartIndex: 69, EndIndex: 137},
			},
			{
				ID: "p-pets", Title: "Pets", Text: "No pet may be kept without written consent. A pet deposit applies.",
				Explanation: "Ask before getting a pet.", RiskLevel: domain.RiskLevelHigh,
				Location: domain.Location{StartIndex: 138, EndIndex: 204},
			},
		},
		CompletedAt: time.Now().UTC(),
	}

	if err := e.Analyses.PutDocument(e.Ctx, doc); err != nil {
		e.T.Fatalf("failed to upload document: %v", err)
	}
	if err := e.Analyses.PutAnalysis(e.Ctx, analysis); err != nil {
		e.T.Fatalf("failed to upload analysis: %v", err)
	}
	return analysis
}
