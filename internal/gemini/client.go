// Package gemini adapts Google's genai SDK to the embedding and generation
// capabilities used by the QA service.
package gemini

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const (
	DefaultGenerativeModel = "gemini-2.5-flash"
	DefaultEmbeddingModel  = "gemini-embedding-001"
	DefaultDimensions      = 768
	maxEmbeddingChars      = 3000
)

// modelsAPI is the subset of *genai.Models the client uses
type modelsAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	models          modelsAPI
	generativeModel string
	embeddingModel  string
	dimensions      int32
}

type Option func(*Client)

func WithGenerativeModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.generativeModel = model
		}
	}
}

func WithEmbeddingModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

func WithDimensions(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.dimensions = int32(n)
		}
	}
}

// Config selects the backend. An APIKey uses the Gemini API, otherwise
// Vertex AI in Project/Location.
type Config struct {
	APIKey   string
	Project  string
	Location string
}

func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	cc := &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	}
	if cfg.APIKey != "" {
		cc = &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client", goerr.V("project", cfg.Project), goerr.V("location", cfg.Location))
	}
	return newClient(client.Models, opts...), nil
}

func newClient(models modelsAPI, opts ...Option) *Client {
	c := &Client{
		models:          models,
		generativeModel: DefaultGenerativeModel,
		embeddingModel:  DefaultEmbeddingModel,
		dimensions:      DefaultDimensions,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateEmbedding embeds text, truncated to 3000 characters
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, goerr.New("text cannot be empty")
	}
	if r := []rune(text); len(r) > maxEmbeddingChars {
		text = string(r[:maxEmbeddingChars])
	}

	dims := c.dimensions
	resp, err := c.models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V("model", c.embeddingModel))
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, goerr.New("no embedding returned", goerr.V("model", c.embeddingModel))
	}

	values := resp.Embeddings[0].Values
	if len(values) != int(c.dimensions) {
		return nil, goerr.New("embedding has wrong dimensions",
			goerr.V("got", len(values)),
			goerr.V("expected", c.dimensions),
		)
	}
	return values, nil
}

// Generate runs a single-turn completion and concatenates the text parts of
// the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", goerr.New("prompt cannot be empty")
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: params.MaxTokens,
		Temperature:     genai.Ptr(params.Temperature),
		TopP:            genai.Ptr(params.TopP),
		TopK:            genai.Ptr(float32(params.TopK)),
	}

	resp, err := c.models.GenerateContent(ctx, c.generativeModel, genai.Text(prompt), config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content", goerr.V("model", c.generativeModel))
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.New("invalid response structure from gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}
