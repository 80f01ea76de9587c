package llm

import "context"

// Usage contains token usage information
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Provider is the completion interface the matching pipeline depends on.
// Implementations are safe for concurrent use.
type Provider interface {
	// Complete sends a completion request and returns the text response.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, *Usage, error)

	// CompleteJSON sends a completion request and parses the JSON response
	// into result, retrying on malformed output.
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, result interface{}) (*Usage, error)

	// Model returns the model identifier in use.
	Model() string
}
