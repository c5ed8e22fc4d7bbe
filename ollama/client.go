package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultHost is the address of a local Ollama server.
const DefaultHost = "http://127.0.0.1:11434"

// Client wraps api.Client with a fixed host and extra request headers.
type Client struct {
	client  *api.Client
	baseURL string
}

type ModelInfo struct {
	Name string
	Size int64
}

// NewClient creates a client for the given host. Headers are added to every
// request, e.g. for a reverse proxy requiring authentication.
func NewClient(baseURL string, headers map[string]string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultHost
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	httpClient := http.DefaultClient
	if len(headers) > 0 {
		httpClient = &http.Client{
			Transport: &headerTransport{base: http.DefaultTransport, headers: headers},
		}
	}

	return &Client{
		client:  api.NewClient(parsedURL, httpClient),
		baseURL: baseURL,
	}, nil
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat runs a chat request. The callback receives every streamed part, or
// the single complete response when req.Stream is false.
func (c *Client) Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
	return c.client.Chat(ctx, req, fn)
}

// Generate runs a completion request.
func (c *Client) Generate(ctx context.Context, req *api.GenerateRequest, fn api.GenerateResponseFunc) error {
	return c.client.Generate(ctx, req, fn)
}

// Embed embeds one or many inputs.
func (c *Client) Embed(ctx context.Context, model string, input any) ([][]float32, error) {
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{Model: model, Input: input})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]ModelInfo, len(resp.Models))
	for i, model := range resp.Models {
		models[i] = ModelInfo{Name: model.Name, Size: model.Size}
	}
	return models, nil
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// toolCallingModels tracks which model families support tool calling.
var toolCallingModels = map[string]bool{
	"qwen":            true,
	"llama3.1":        true,
	"llama3.2":        true,
	"llama3.3":        true,
	"mistral":         true,
	"command-r":       true,
	"granite3":        true,
	"gpt-oss":         true,
	"llama3-gradient": false,
	"llama3":          false,
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
}

// orderedPrefixes lists the most specific prefixes first so "llama3.2" is
// not matched as "llama3".
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "granite3", "gpt-oss",
	"codellama",
	"llama3",
	"phi", "gemma",
}

// ModelSupportsToolCalling reports whether a model family is known to accept
// tool declarations. Unknown models report false.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			return toolCallingModels[prefix]
		}
	}
	return false
}
