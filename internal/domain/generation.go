package domain

// GenerationParams are the sampling settings passed to a text generator
type GenerationParams struct {
	MaxTokens   int32
	Temperature float32
	TopP        float32
	TopK        int32
}

// DefaultGenerationParams returns the settings used for answering questions
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		MaxTokens:   1024,
		Temperature: 0.3,
		TopP:        0.8,
		TopK:        40,
	}
}
