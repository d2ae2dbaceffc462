package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/logging"
	"github.com/cloo-solutions/docqa/internal/telemetry"
	"github.com/cloo-solutions/docqa/internal/vector"
)

// Stage is a step of the question answering pipeline
type Stage string

const (
	StageIdle       Stage = "idle"
	StageIndexing   Stage = "indexing"
	StageEmbedding  Stage = "embedding"
	StageRetrieving Stage = "retrieving"
	StageGenerating Stage = "generating"
	StageCiting     Stage = "citing"
	StagePersisted  Stage = "persisted"
	StageFailed     Stage = "failed"
)

// StageError records the stage a question failed in
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage carried by err, or StageIdle when none is
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageIdle
}

// AskInput represents input for AskQuestion
type AskInput struct {
	DocumentID     string
	UserID         string
	Question       string
	ConversationID string
	// StartConversation makes ConversationID a client-proposed ID for a new
	// conversation instead of a reference to an existing one.
	StartConversation bool
}

// QAResponse is the structured answer to a question
type QAResponse struct {
	Answer         string                  `json:"answer"`
	Sources        []domain.SourceCitation `json:"sources"`
	ConversationID string                  `json:"conversationId"`
	Confidence     float64                 `json:"confidence"`
}

// QAConfig holds the tunables of QAService
type QAConfig struct {
	Retrieval  RetrievalOptions
	Generation domain.GenerationParams
	UserHasher *logging.UserHasher
}

// DefaultQAConfig returns the production defaults
func DefaultQAConfig() QAConfig {
	return QAConfig{
		Retrieval:  DefaultRetrievalOptions(),
		Generation: domain.DefaultGenerationParams(),
	}
}

// QAService answers questions about analyzed documents
type QAService struct {
	documents     DocumentStore
	embeddings    EmbeddingStore
	conversations ConversationStore
	embedder      EmbeddingClient
	generator     GenerationClient
	indexer       *Indexer
	retrieval     *RetrievalEngine
	cfg           QAConfig

	now   func() time.Time
	newID func() string
}

// NewQAService creates a new QAService instance
func NewQAService(
	documents DocumentStore,
	embeddings EmbeddingStore,
	conversations ConversationStore,
	embedder EmbeddingClient,
	generator GenerationClient,
	indexer *Indexer,
	cfg QAConfig,
) *QAService {
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval = DefaultRetrievalOptions()
	}
	if cfg.Generation.MaxTokens <= 0 {
		cfg.Generation = domain.DefaultGenerationParams()
	}
	if cfg.UserHasher == nil {
		cfg.UserHasher = logging.NewUserHasher("")
	}
	return &QAService{
		documents:     documents,
		embeddings:    embeddings,
		conversations: conversations,
		embedder:      embedder,
		generator:     generator,
		indexer:       indexer,
		retrieval:     NewRetrievalEngine(embeddings),
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
}

// AskQuestion runs one question through the pipeline. Nothing is persisted
// unless every stage succeeds, and the user/assistant pair lands atomically.
func (s *QAService) AskQuestion(ctx context.Context, input AskInput) (*QAResponse, error) {
	userTag := s.cfg.UserHasher.Hash(input.UserID)
	ctx, span := telemetry.StartSpan(ctx, "QAService.AskQuestion", telemetry.SpanAttributes{
		DocumentID:     input.DocumentID,
		ConversationID: input.ConversationID,
		UserID:         userTag,
		Operation:      "ask",
	})
	defer span.End()

	logger := logging.From(ctx).With("document_id", input.DocumentID, "user", userTag)
	stage := StageIdle
	enter := func(next Stage) {
		stage = next
		logger.Debug("qa stage", "stage", next)
		span.SetStage(string(next))
		telemetry.AddBreadcrumb(ctx, "qa", string(next))
	}
	fail := func(err error) error {
		logger.Warn("question failed", "stage", stage, "error", err)
		span.SetError(err)
		return &StageError{Stage: stage, Err: err}
	}

	if err := validateAskInput(input); err != nil {
		return nil, fail(err)
	}

	conv, isNew, err := s.resolveConversation(ctx, input)
	if err != nil {
		return nil, fail(err)
	}

	doc, err := s.documents.GetDocument(ctx, input.DocumentID)
	if err != nil {
		return nil, fail(err)
	}
	analysis, err := s.documents.GetAnalysis(ctx, input.DocumentID)
	if err != nil {
		return nil, fail(err)
	}

	enter(StageIndexing)
	if _, err := s.indexer.EnsureIndexed(ctx, analysis); err != nil {
		return nil, fail(err)
	}

	enter(StageEmbedding)
	queryVector, err := s.embedder.GenerateEmbedding(ctx, input.Question)
	if err != nil {
		return nil, fail(domain.ErrEmbeddingFailure.Wrap(err))
	}
	// length is not checked: a query of the wrong dimensionality scores 0
	if err := vector.Validate(queryVector, 0); err != nil {
		return nil, fail(domain.ErrEmbeddingFailure.Wrap(err))
	}

	enter(StageRetrieving)
	retrieved, err := s.retrieval.FindRelevant(ctx, input.DocumentID, queryVector, s.cfg.Retrieval)
	if err != nil {
		return nil, fail(err)
	}

	enter(StageGenerating)
	prompt := AssembleContext(doc, retrieved, conv.Messages, input.Question).Render()
	answer, err := s.generator.Generate(ctx, prompt, s.cfg.Generation)
	if err != nil {
		return nil, fail(domain.ErrGenerationFailure.Wrap(err))
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fail(domain.ErrGenerationFailure.Wrap(errors.New("empty answer")))
	}

	enter(StageCiting)
	sources := BuildCitations(retrieved)
	confidence := ScoreConfidence(retrieved, answer)

	// a cancelled request must not leave a turn behind
	if err := ctx.Err(); err != nil {
		return nil, fail(err)
	}

	user := domain.NewUserMessage(s.newID(), input.Question)
	assistant := domain.NewAssistantMessage(s.newID(), answer, sources)
	conversationID, err := s.persistTurn(ctx, conv, isNew, input, user, assistant)
	if err != nil {
		return nil, fail(err)
	}
	enter(StagePersisted)

	logger.Info("question answered",
		"conversation_id", conversationID,
		"retrieved", len(retrieved),
		"citations", len(sources),
		"confidence", confidence,
	)

	return &QAResponse{
		Answer:         answer,
		Sources:        sources,
		ConversationID: conversationID,
		Confidence:     confidence,
	}, nil
}

func validateAskInput(input AskInput) error {
	switch {
	case strings.TrimSpace(input.DocumentID) == "":
		return domain.ErrMissingRequiredField.Wrap(errors.New("document ID is required"))
	case strings.TrimSpace(input.UserID) == "":
		return domain.ErrMissingRequiredField.Wrap(errors.New("user ID is required"))
	case strings.TrimSpace(input.Question) == "":
		return domain.ErrMissingRequiredField.Wrap(errors.New("question is required"))
	case input.StartConversation && input.ConversationID == "":
		return domain.ErrMissingRequiredField.Wrap(errors.New("conversation ID is required to start a conversation"))
	}
	return nil
}

// resolveConversation loads the target conversation, or prepares an unsaved
// one. New conversations are only stored together with their first turn.
func (s *QAService) resolveConversation(ctx context.Context, input AskInput) (*domain.Conversation, bool, error) {
	if input.ConversationID == "" {
		return domain.NewConversation(s.newID(), input.DocumentID, input.UserID, s.now()), true, nil
	}

	conv, err := s.conversations.GetByID(ctx, input.ConversationID)
	switch {
	case err == nil:
		if !conv.OwnedBy(input.DocumentID, input.UserID) {
			if input.StartConversation {
				return nil, false, domain.ErrConversationAlreadyExists
			}
			return nil, false, domain.ErrConversationNotFound
		}
		return conv, false, nil
	case errors.Is(err, domain.ErrConversationNotFound) && input.StartConversation:
		return domain.NewConversation(input.ConversationID, input.DocumentID, input.UserID, s.now()), true, nil
	default:
		return nil, false, err
	}
}

func (s *QAService) persistTurn(ctx context.Context, conv *domain.Conversation, isNew bool, input AskInput, user, assistant domain.Message) (string, error) {
	if !isNew {
		if _, err := s.conversations.AppendTurn(ctx, conv.ID, user, assistant); err != nil {
			return "", fmt.Errorf("failed to append turn: %w", err)
		}
		return conv.ID, nil
	}

	if err := conv.AppendTurn(user, assistant, s.now()); err != nil {
		return "", err
	}
	err := s.conversations.Create(ctx, conv)
	if err == nil {
		return conv.ID, nil
	}
	if !errors.Is(err, domain.ErrConversationAlreadyExists) {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	// lost the creation race; join the winner if it is ours
	winner, err := s.conversations.GetByID(ctx, conv.ID)
	if err != nil {
		return "", err
	}
	if !winner.OwnedBy(input.DocumentID, input.UserID) {
		return "", domain.ErrConversationAlreadyExists
	}
	if _, err := s.conversations.AppendTurn(ctx, winner.ID, user, assistant); err != nil {
		return "", fmt.Errorf("failed to append turn: %w", err)
	}
	return winner.ID, nil
}
