package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"agentcore/model"
	"agentcore/ollama"

	"github.com/charmbracelet/log"
	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// OllamaProvider implements model.Provider over a local Ollama server.
//
// Options and the reasoning flag are passed through untouched, and chat
// responses are streamed token by token when the request asks for it.
// Single-text embeddings go through a counting gate owned by the provider so
// that parallel callers cannot overload the server; batch embeddings bypass
// it since the server batches internally.
type OllamaProvider struct {
	client    *ollama.Client
	embedGate *semaphore.Weighted
	logger    *log.Logger
}

// NewOllamaProvider creates a new Ollama provider instance.
//
// cfg.BaseURL defaults to "http://127.0.0.1:11434" and cfg.EmbedConcurrency
// to DefaultEmbedConcurrency. Returns an error if the URL is invalid.
//
// Example:
//
//	p, err := NewOllamaProvider(Config{BaseURL: "http://localhost:11434"})
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	client, err := ollama.NewClient(cfg.BaseURL, cfg.Headers)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	limit := cfg.EmbedConcurrency
	if limit <= 0 {
		limit = DefaultEmbedConcurrency
	}

	return &OllamaProvider{
		client:    client,
		embedGate: semaphore.NewWeighted(limit),
		logger:    cfg.logger(),
	}, nil
}

// Chat implements model.Provider.Chat.
//
// With req.Stream set, callback receives every content chunk as it arrives
// along with any tool calls of that chunk. The returned response always holds
// the complete message. When req.Format is set and the model answered
// without tool calls, the content is parsed into Value.
//
// Example:
//
//	resp, err := p.Chat(ctx, model.ChatRequest{
//	    Model:    "mistral-small",
//	    Messages: []model.Message{{Role: "user", Content: "Hello!"}},
//	    Stream:   true,
//	}, func(chunk string, _ []model.ToolCall) error {
//	    fmt.Print(chunk)
//	    return nil
//	})
func (p *OllamaProvider) Chat(ctx context.Context, req model.ChatRequest, callback model.StreamCallback) (*model.ChatResponse, error) {
	const op = "ollama.chat"

	if len(req.Tools) > 0 && !ollama.ModelSupportsToolCalling(req.Model) {
		p.logger.Warn("model is not known to support tool calling", "model", req.Model, "tools", len(req.Tools))
	}

	stream := req.Stream
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: ConvertToOllamaMessages(req.Messages),
		Tools:    ConvertToOllamaTools(req.Tools),
		Format:   req.Format,
		Options:  optionsMap(req.Options),
		Stream:   &stream,
	}
	if req.Think != nil {
		chatReq.Think = &api.ThinkValue{Value: *req.Think}
	}

	var content, thinking strings.Builder
	var calls []model.ToolCall
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		thinking.WriteString(resp.Message.Thinking)
		chunkCalls := ConvertToProviderToolCalls(resp.Message.ToolCalls)
		calls = append(calls, chunkCalls...)
		if stream && callback != nil {
			return callback(resp.Message.Content, chunkCalls)
		}
		return nil
	})
	if err != nil {
		return nil, classifyOllamaError(op, err)
	}

	out := &model.ChatResponse{
		Message: model.Message{
			Role:      model.RoleAssistant,
			Content:   content.String(),
			ToolCalls: calls,
		},
		Thinking: thinking.String(),
	}
	if len(req.Format) > 0 && len(calls) == 0 {
		value, err := parseStructured(op, out.Message.Content)
		if err != nil {
			return nil, err
		}
		out.Value = value
	}
	return out, nil
}

// Generate implements model.Provider.Generate with a non-streaming request.
func (p *OllamaProvider) Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	const op = "ollama.generate"

	stream := false
	genReq := &api.GenerateRequest{
		Model:   req.Model,
		System:  req.System,
		Prompt:  req.Prompt,
		Format:  req.Format,
		Options: optionsMap(req.Options),
		Stream:  &stream,
	}
	if req.Think != nil {
		genReq.Think = &api.ThinkValue{Value: *req.Think}
	}

	var text, thinking strings.Builder
	err := p.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		text.WriteString(resp.Response)
		thinking.WriteString(resp.Thinking)
		return nil
	})
	if err != nil {
		return nil, classifyOllamaError(op, err)
	}

	out := &model.GenerateResponse{Text: text.String(), Thinking: thinking.String()}
	if len(req.Format) > 0 {
		value, err := parseStructured(op, out.Text)
		if err != nil {
			return nil, err
		}
		out.Value = value
	}
	return out, nil
}

// Embed implements model.Provider.Embed behind the embed gate.
func (p *OllamaProvider) Embed(ctx context.Context, modelName, text string) ([]float32, error) {
	const op = "ollama.embed"

	if err := p.embedGate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.embedGate.Release(1)

	vectors, err := p.client.Embed(ctx, modelName, text)
	if err != nil {
		return nil, classifyOllamaError(op, err)
	}
	if len(vectors) == 0 {
		return nil, model.Errorf(model.KindProvider, op, "no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch implements model.Provider.EmbedBatch in a single request.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, modelName string, texts []string) ([][]float32, error) {
	const op = "ollama.embed_batch"

	if len(texts) == 0 {
		return nil, model.Errorf(model.KindProvider, op, "empty input")
	}
	vectors, err := p.client.Embed(ctx, modelName, texts)
	if err != nil {
		return nil, classifyOllamaError(op, err)
	}
	return vectors, nil
}

// Ping checks that the server is reachable.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return model.E(model.KindProviderUnavailable, "ollama.ping", err)
	}
	return nil
}

// ListModels returns the models installed on the server.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

func optionsMap(o model.Options) map[string]any {
	if o.IsZero() {
		return nil
	}
	return o.Map()
}

// classifyOllamaError separates errors reported by the server from transport
// failures. Context cancellation is returned as is.
func classifyOllamaError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &model.Error{
			Kind: model.KindProvider,
			Op:   op,
			Code: strconv.Itoa(statusErr.StatusCode),
			Msg:  statusErr.ErrorMessage,
		}
	}
	return model.E(model.KindProviderUnavailable, op, err)
}
