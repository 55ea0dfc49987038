// Package llm abstracts the AI providers used for classification,
// sentiment analysis, and response generation. Callers speak in plain
// prompt/completion terms; provider wire formats stay in here.
package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no provider credentials are set.
// Callers treat it as "AI unavailable" and fall back to rules.
var ErrNotConfigured = errors.New("llm: provider not configured")

// Message is a single turn in a chat exchange.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatRequest is a provider-independent chat completion request.
type ChatRequest struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// ChatProvider produces chat completions.
type ChatProvider interface {
	// Chat returns the assistant's reply text for the exchange.
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Embedder produces vector embeddings for similarity search.
type Embedder interface {
	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float64, error)
}
