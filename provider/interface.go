// Package provider implements the LLM backends behind model.Provider.
//
// The provider family is closed: a local Ollama server (streaming, native
// options, reasoning flag) and any OpenAI-compatible REST API (OpenAI,
// OpenRouter, vLLM...). Agents stay provider-agnostic; the conversions between
// the model package types and each backend's wire types live here.
//
// # Architecture
//
//   - model.Provider defines the contract
//   - provider.OllamaProvider implements it over github.com/ollama/ollama/api
//   - provider.OpenAIProvider implements it over the openai-go REST client
//   - provider.Base rejects every call, for embedding in partial backends
//   - provider.New() creates providers from a Config
//   - provider.Pool shares one provider per backend endpoint
//
// # Usage
//
//	p, err := provider.New(provider.Config{
//	    Type:    provider.TypeOllama,
//	    BaseURL: "http://localhost:11434",
//	})
//	if err != nil {
//	    // handle error
//	}
//	resp, err := p.Chat(ctx, model.ChatRequest{Model: "mistral-small", Messages: msgs}, nil)
package provider

import (
	"time"

	"github.com/charmbracelet/log"
)

// Type identifies the provider implementation.
type Type string

const (
	TypeOllama Type = "ollama"
	TypeOpenAI Type = "open-ai"
)

// DefaultEmbedConcurrency bounds concurrent single-text embed calls against
// one Ollama server.
const DefaultEmbedConcurrency = 4

// Config holds provider-specific configuration.
type Config struct {
	Type    Type
	BaseURL string
	Headers map[string]string
	APIKey  string // OpenAI-compatible backends only

	// MaxRetries is the idempotent retry budget of the REST transport.
	// Negative disables retries; zero uses the default of 2.
	MaxRetries int
	Timeout    time.Duration

	// EmbedConcurrency bounds in-flight single embed calls (Ollama only).
	EmbedConcurrency int64

	Logger *log.Logger
}

func (c Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default().WithPrefix("provider")
}
