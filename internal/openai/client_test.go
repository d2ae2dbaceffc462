package openai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// MockOpenAIAPI is a mock for the OpenAI API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockOpenAIAPI) CreateCompletion(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	args := m.Called(ctx, prompt, params)
	return args.String(0), args.Error(1)
}

func newMockClient(api *MockOpenAIAPI, dimensions int) *Client {
	return &Client{api: api, chat: api, dimensions: dimensions}
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newMockClient(mockAPI, DefaultEmbeddingDimensions)

	ctx := context.Background()
	text := "The tenant must give 30 days notice."
	expected := make([]float32, DefaultEmbeddingDimensions)
	for i := range expected {
		expected[i] = float32(i) * 0.001
	}

	mockAPI.On("CreateEmbeddings", ctx, text).Return(expected, nil)

	embedding, err := client.GenerateEmbedding(ctx, text)

	assert.NoError(t, err)
	assert.Equal(t, expected, embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_Truncates(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newMockClient(mockAPI, 2)

	long := strings.Repeat("ü", MaxEmbeddingChars+100)
	mockAPI.On("CreateEmbeddings", mock.Anything, mock.MatchedBy(func(s string) bool {
		return utf8.RuneCountInString(s) == MaxEmbeddingChars && utf8.ValidString(s)
	})).Return([]float32{1, 2}, nil)

	_, err := client.GenerateEmbedding(context.Background(), long)
	assert.NoError(t, err)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	embedding, err := client.GenerateEmbedding(context.Background(), "   ")

	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newMockClient(mockAPI, DefaultEmbeddingDimensions)

	ctx := context.Background()
	apiErr := errors.New("API rate limit exceeded")
	mockAPI.On("CreateEmbeddings", ctx, "Test text").Return(nil, apiErr)

	embedding, err := client.GenerateEmbedding(ctx, "Test text")

	assert.Nil(t, embedding)
	assert.ErrorIs(t, err, apiErr)
	assert.Contains(t, err.Error(), "failed to create embedding")
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newMockClient(mockAPI, DefaultEmbeddingDimensions)

	mockAPI.On("CreateEmbeddings", mock.Anything, "Test text").Return(make([]float32, 1536), nil)

	_, err := client.GenerateEmbedding(context.Background(), "Test text")
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestClient_Generate(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newMockClient(mockAPI, DefaultEmbeddingDimensions)
	params := domain.DefaultGenerationParams()

	mockAPI.On("CreateCompletion", mock.Anything, "Question: rent?", params).Return("Monthly.", nil).Once()
	out, err := client.Generate(context.Background(), "Question: rent?", params)
	assert.NoError(t, err)
	assert.Equal(t, "Monthly.", out)

	mockAPI.On("CreateCompletion", mock.Anything, "Question: fail", params).Return("", errors.New("overloaded")).Once()
	_, err = client.Generate(context.Background(), "Question: fail", params)
	assert.ErrorContains(t, err, "failed to create completion")

	_, err = client.Generate(context.Background(), " ", params)
	assert.Equal(t, ErrEmptyText, err)
	mockAPI.AssertExpectations(t)
}

func TestNewClientWithConfig(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "test-api-key", EmbeddingDimensions: 1024})

	assert.NotNil(t, client.api)
	assert.NotNil(t, client.chat)
	assert.Equal(t, 1024, client.dimensions)

	client = NewClient("test-api-key")
	assert.Equal(t, DefaultEmbeddingDimensions, client.dimensions)

	adapter := NewOpenAIAdapter("k", "", "", 0)
	assert.Equal(t, DefaultEmbeddingModel, adapter.model)
	assert.Equal(t, DefaultChatModel, adapter.chatModel)
}
