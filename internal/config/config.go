package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	AnalysisSourceStore = "store"
	AnalysisSourceS3    = "s3"
)

type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	Debug     bool   `envconfig:"DEBUG" default:"false"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	StoreBackend     string `envconfig:"STORE_BACKEND" default:"postgres"`
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	MigrationsSource string `envconfig:"MIGRATIONS_SOURCE" default:"file://migrations"`

	FirestoreProject  string `envconfig:"FIRESTORE_PROJECT"`
	FirestoreDatabase string `envconfig:"FIRESTORE_DATABASE" default:"(default)"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	LLMProvider          string `envconfig:"LLM_PROVIDER" default:"openai"`
	OpenAIAPIKey         string `envconfig:"OPENAI_API_KEY"`
	OpenAIChatModel      string `envconfig:"OPENAI_CHAT_MODEL"`
	OpenAIEmbeddingModel string `envconfig:"OPENAI_EMBEDDING_MODEL"`
	GeminiAPIKey         string `envconfig:"GEMINI_API_KEY"`
	GeminiProject        string `envconfig:"GEMINI_PROJECT"`
	GeminiLocation       string `envconfig:"GEMINI_LOCATION" default:"us-central1"`
	GeminiGenerative     string `envconfig:"GEMINI_GENERATIVE_MODEL"`
	GeminiEmbedding      string `envconfig:"GEMINI_EMBEDDING_MODEL"`

	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
	IndexConcurrency    int           `envconfig:"INDEX_CONCURRENCY" default:"4"`
	EmbeddingRate       float64       `envconfig:"EMBEDDING_RATE_PER_SEC" default:"10"`
	IndexLockTTL        time.Duration `envconfig:"INDEX_LOCK_TTL" default:"2m"`
	IndexLockWait       time.Duration `envconfig:"INDEX_LOCK_WAIT" default:"1m"`

	AnalysisSource string `envconfig:"ANALYSIS_SOURCE" default:"store"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey    string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket       string `envconfig:"S3_BUCKET" default:"docqa-analyses"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`

	UserHashKey string `envconfig:"USER_HASH_KEY"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCQA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendFirestore:
		if c.FirestoreProject == "" {
			errs = append(errs, errors.New("FIRESTORE_PROJECT is required for the firestore backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}

	switch c.AnalysisSource {
	case AnalysisSourceStore:
		if c.StoreBackend != BackendPostgres && c.StoreBackend != BackendMemory {
			errs = append(errs, fmt.Errorf("ANALYSIS_SOURCE=store needs the postgres or memory backend, use s3 with %s", c.StoreBackend))
		}
	case AnalysisSourceS3:
		if !c.HasS3() {
			errs = append(errs, errors.New("ANALYSIS_SOURCE=s3 requires S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ANALYSIS_SOURCE %q", c.AnalysisSource))
	}

	if c.EmbeddingDimensions <= 0 {
		errs = append(errs, errors.New("EMBEDDING_DIMENSIONS must be positive"))
	}
	if c.IndexConcurrency <= 0 {
		errs = append(errs, errors.New("INDEX_CONCURRENCY must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasGemini() bool {
	return c.GeminiAPIKey != "" || c.GeminiProject != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

// HasLLM reports whether the selected provider has credentials
func (c *Config) HasLLM() bool {
	if c.LLMProvider == ProviderGemini {
		return c.HasGemini()
	}
	return c.HasOpenAI()
}
