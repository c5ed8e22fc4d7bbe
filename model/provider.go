package model

import (
	"context"
	"encoding/json"
)

// Provider abstracts the LLM backends (local Ollama server, OpenAI-compatible
// REST API) behind provider-agnostic request and response types.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: provider implementations import model, and the agent layer
// uses Provider without importing the provider package.
type Provider interface {
	// Chat sends a message list and returns the assistant reply. When
	// req.Stream is set, partial content is also delivered through callback.
	Chat(ctx context.Context, req ChatRequest, callback StreamCallback) (*ChatResponse, error)

	// Generate runs a one-shot completion from a system and user prompt.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Embed returns the embedding vector of a single text.
	Embed(ctx context.Context, model, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in request order.
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// StreamCallback is called for each chunk of a streamed response.
type StreamCallback func(chunk string, toolCalls []ToolCall) error

// ChatRequest is the provider-agnostic chat request.
type ChatRequest struct {
	Model    string
	Messages []Message
	Options  Options
	// Format is a JSON schema constraining the reply. When set, the reply is
	// parsed into ChatResponse.Value.
	Format json.RawMessage
	Tools  []ToolDeclaration
	// Think enables the reasoning channel on backends that support it.
	Think  *bool
	Stream bool
}

// ChatResponse is the assistant reply of a chat call.
type ChatResponse struct {
	Message  Message
	Value    any
	Thinking string
}

// GenerateRequest is the provider-agnostic completion request.
type GenerateRequest struct {
	Model   string
	System  string
	Prompt  string
	Options Options
	Format  json.RawMessage
	Think   *bool
}

// GenerateResponse holds either free text or the parsed structured value.
type GenerateResponse struct {
	Text     string
	Value    any
	Thinking string
}
