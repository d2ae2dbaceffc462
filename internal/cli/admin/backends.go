package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/database"
	"github.com/cloo-solutions/docqa/internal/firestore"
	"github.com/cloo-solutions/docqa/internal/gemini"
	"github.com/cloo-solutions/docqa/internal/lock"
	"github.com/cloo-solutions/docqa/internal/logging"
	"github.com/cloo-solutions/docqa/internal/memstore"
	"github.com/cloo-solutions/docqa/internal/openai"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
)

// backends holds the stores selected by configuration
type backends struct {
	documents     service.DocumentStore
	embeddings    service.EmbeddingStore
	conversations service.ConversationStore

	pool     *pgxpool.Pool
	analyses *storage.AnalysisStore

	// extra readiness checks, such as the shared lock's Redis
	probes  []func(context.Context) error
	closers []func()
}

// openBackends connects the configured store backend and analysis source.
// The caller must Close the result.
func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (*backends, error) {
	b := &backends{}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := database.NewPool(ctx, database.Config{
			URL:          cfg.DatabaseURL,
			MaxConns:     cfg.DatabaseMaxConns,
			PingAttempts: 5,
		})
		if err != nil {
			return nil, err
		}
		b.pool = pool
		b.closers = append(b.closers, pool.Close)
		logger.Info("connected to database")

		if migrate {
			if err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsSource, database.MigrateUp, logger); err != nil {
				b.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		b.embeddings = repository.NewEmbeddingRepository(pool, cfg.EmbeddingDimensions)
		b.conversations = repository.NewConversationRepository(pool)
		b.documents = repository.NewDocumentRepository(pool)

	case config.BackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.FirestoreProject, cfg.FirestoreDatabase)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close firestore client", "error", err)
			}
		})
		logger.Info("connected to firestore", "project", cfg.FirestoreProject, "database", cfg.FirestoreDatabase)

		b.embeddings = firestore.NewEmbeddingStore(client, cfg.EmbeddingDimensions)
		b.conversations = firestore.NewConversationStore(client)

	case config.BackendMemory:
		logger.Warn("using in-memory stores, nothing survives a restart")
		b.embeddings = memstore.NewEmbeddingStore(cfg.EmbeddingDimensions)
		b.conversations = memstore.NewConversationStore()
		b.documents = memstore.NewDocumentStore()

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.AnalysisSource == config.AnalysisSourceS3 {
		analyses, err := storage.NewAnalysisStore(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := analyses.EnsureBucket(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		logger.Info("S3 bucket ready", "bucket", cfg.S3Bucket)
		b.analyses = analyses
		b.documents = analyses
	}

	if b.documents == nil {
		b.Close()
		return nil, fmt.Errorf("no document source for backend %q", cfg.StoreBackend)
	}

	return b, nil
}

// Ready pings the database when there is one, then runs the extra probes
func (b *backends) Ready(ctx context.Context) error {
	if b.pool != nil {
		if err := b.pool.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	for _, probe := range b.probes {
		if err := probe(ctx); err != nil {
			return err
		}
	}
	return nil
}

// watchLock adds a readiness probe for index locks backed by a remote service
func (b *backends) watchLock(l service.IndexLock) {
	if rl, ok := l.(*lock.RedisLock); ok {
		b.probes = append(b.probes, func(ctx context.Context) error {
			if err := rl.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		})
	}
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// newLLM returns the embedding and generation clients of the configured provider
func newLLM(ctx context.Context, cfg *config.Config) (service.EmbeddingClient, service.GenerationClient, error) {
	if !cfg.HasLLM() {
		return nil, nil, fmt.Errorf("no credentials for LLM provider %q", cfg.LLMProvider)
	}

	switch cfg.LLMProvider {
	case config.ProviderGemini:
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:   cfg.GeminiAPIKey,
			Project:  cfg.GeminiProject,
			Location: cfg.GeminiLocation,
		},
			gemini.WithGenerativeModel(cfg.GeminiGenerative),
			gemini.WithEmbeddingModel(cfg.GeminiEmbedding),
			gemini.WithDimensions(cfg.EmbeddingDimensions),
		)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	default:
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.OpenAIEmbeddingModel),
			ChatModel:           cfg.OpenAIChatModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		})
		return client, client, nil
	}
}

// newIndexLock uses Redis when configured so that replicas share locks
func newIndexLock(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.IndexLock, func(), error) {
	if !cfg.HasRedis() {
		return lock.NewLocalLock(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr)

	return lock.NewRedisLock(client), func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}, nil
}

// newQAService assembles the question answering pipeline on top of b
func newQAService(ctx context.Context, cfg *config.Config, b *backends, logger *slog.Logger) (*service.QAService, func(), error) {
	embedder, generator, err := newLLM(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	indexLock, closeLock, err := newIndexLock(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	b.watchLock(indexLock)

	indexer := service.NewIndexer(b.embeddings, embedder, indexLock, service.IndexerConfig{
		Dimensions:    cfg.EmbeddingDimensions,
		Concurrency:   cfg.IndexConcurrency,
		RatePerSecond: cfg.EmbeddingRate,
		LockTTL:       cfg.IndexLockTTL,
		LockWait:      cfg.IndexLockWait,
	})

	qaCfg := service.DefaultQAConfig()
	qaCfg.UserHasher = logging.NewUserHasher(cfg.UserHashKey)

	svc := service.NewQAService(b.documents, b.embeddings, b.conversations, embedder, generator, indexer, qaCfg)
	return svc, closeLock, nil
}
