package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"maps"
	"strconv"
	"time"

	"agentcore/model"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/gjson"
)

const (
	defaultOpenAIBaseURL = "https://openrouter.ai/api/v1"
	defaultRESTTimeout   = 5 * time.Minute
	defaultRESTRetries   = 2
)

// restOptions maps option names to their chat/completions names. Options
// missing here are Ollama-only and are not sent.
var restOptions = map[string]string{
	"temperature":       "temperature",
	"top_p":             "top_p",
	"seed":              "seed",
	"stop":              "stop",
	"presence_penalty":  "presence_penalty",
	"frequency_penalty": "frequency_penalty",
	"num_predict":       "max_tokens",
}

// OpenAIProvider implements model.Provider over an OpenAI-compatible REST
// API (OpenAI, OpenRouter, vLLM...).
//
// Requests are plain JSON posts sent through the openai-go client, which
// provides authentication and the retry policy; responses are read with gjson
// so that provider-specific fields (OpenRouter error metadata, reasoning)
// survive. Streaming is not supported.
type OpenAIProvider struct {
	client  openai.Client
	baseURL string
	logger  *log.Logger
}

// NewOpenAIProvider creates a new REST provider instance.
//
// cfg.BaseURL defaults to the OpenRouter API. The API key is optional since
// some gateways authenticate through cfg.Headers instead.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	retries := cfg.MaxRetries
	switch {
	case retries == 0:
		retries = defaultRESTRetries
	case retries < 0:
		retries = 0
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRESTTimeout
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(retries),
		option.WithRequestTimeout(timeout),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &OpenAIProvider{
		client:  openai.NewClient(opts...),
		baseURL: baseURL,
		logger:  cfg.logger(),
	}, nil
}

// requestBody is sent verbatim as the JSON request body.
type requestBody map[string]any

func (b requestBody) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(b))
}

// Chat implements model.Provider.Chat.
//
// A structured-output Format is wrapped as {results: <schema>} in a
// json_schema response format, and the results property is unwrapped from
// the reply. The reasoning flag is dropped. Streaming requests fail with
// StreamingUnsupported before anything is sent.
func (p *OpenAIProvider) Chat(ctx context.Context, req model.ChatRequest, _ model.StreamCallback) (*model.ChatResponse, error) {
	const op = "openai.chat"

	if req.Stream {
		return nil, model.Errorf(model.KindStreamingUnsupported, op, "streaming is not supported by the REST backend")
	}

	body := requestBody{
		"model":    req.Model,
		"messages": ConvertToOpenAIMessages(req.Messages),
	}
	maps.Copy(body, p.convertOptions(req.Options))
	if len(req.Tools) > 0 {
		body["tools"] = req.Tools
	}
	if len(req.Format) > 0 {
		body["response_format"] = wrapResultsSchema(req.Format)
	}

	raw, err := p.post(ctx, op, "chat/completions", body)
	if err != nil {
		return nil, err
	}

	choice := gjson.GetBytes(raw, "choices.0.message")
	if !choice.Exists() {
		return nil, model.Errorf(model.KindProvider, op, "response has no choices")
	}

	out := &model.ChatResponse{
		Message: model.Message{
			Role:      model.RoleAssistant,
			Content:   choice.Get("content").String(),
			ToolCalls: parseRESTToolCalls(choice.Get("tool_calls")),
		},
		Thinking: choice.Get("reasoning").String(),
	}

	if len(req.Format) > 0 && len(out.Message.ToolCalls) == 0 {
		content := out.Message.Content
		if !gjson.Valid(content) {
			return nil, model.Errorf(model.KindMalformedStructuredOutput, op, "reply is not JSON: %s", truncate(content, 200))
		}
		results := gjson.Get(content, "results")
		if !results.Exists() {
			return nil, model.Errorf(model.KindMalformedStructuredOutput, op, "reply has no results property")
		}
		out.Message.Content = results.Raw
		out.Value = results.Value()
	}
	return out, nil
}

// Generate implements model.Provider.Generate as a two-message chat.
func (p *OpenAIProvider) Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	resp, err := p.Chat(ctx, model.ChatRequest{
		Model: req.Model,
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: req.System},
			{Role: model.RoleUser, Content: req.Prompt},
		},
		Options: req.Options,
		Format:  req.Format,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &model.GenerateResponse{Text: resp.Message.Content, Value: resp.Value, Thinking: resp.Thinking}, nil
}

// Embed implements model.Provider.Embed.
func (p *OpenAIProvider) Embed(ctx context.Context, modelName, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, "openai.embed", modelName, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, model.Errorf(model.KindProvider, "openai.embed", "no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch implements model.Provider.EmbedBatch.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, modelName string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, model.Errorf(model.KindProvider, "openai.embed_batch", "empty input")
	}
	return p.embed(ctx, "openai.embed_batch", modelName, texts)
}

func (p *OpenAIProvider) embed(ctx context.Context, op, modelName string, input any) ([][]float32, error) {
	raw, err := p.post(ctx, op, "v1/embeddings", requestBody{"model": modelName, "input": input})
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(raw, "data").Array()
	vectors := make([][]float32, len(data))
	for i, item := range data {
		pos := i
		if idx := item.Get("index"); idx.Exists() && int(idx.Int()) < len(data) {
			pos = int(idx.Int())
		}
		values := item.Get("embedding").Array()
		vec := make([]float32, len(values))
		for j, v := range values {
			vec[j] = float32(v.Float())
		}
		vectors[pos] = vec
	}
	return vectors, nil
}

func (p *OpenAIProvider) post(ctx context.Context, op, path string, body requestBody) ([]byte, error) {
	var raw []byte
	if err := p.client.Post(ctx, path, body, &raw); err != nil {
		return nil, classifyRESTError(op, err)
	}
	// Some gateways report failures in a 200 response.
	if e := gjson.GetBytes(raw, "error"); e.Exists() {
		return nil, restError(op, e, "")
	}
	return raw, nil
}

func (p *OpenAIProvider) convertOptions(o model.Options) map[string]any {
	out := map[string]any{}
	for name, value := range o.Map() {
		restName, ok := restOptions[name]
		if !ok {
			p.logger.Debug("dropping unsupported option", "option", name)
			continue
		}
		out[restName] = value
	}
	return out
}

func parseRESTToolCalls(calls gjson.Result) []model.ToolCall {
	var out []model.ToolCall
	calls.ForEach(func(_, tc gjson.Result) bool {
		call := model.ToolCall{
			ID:   tc.Get("id").String(),
			Name: tc.Get("function.name").String(),
		}
		if call.ID == "" {
			call.ID = uuid.NewString()
		}
		args := tc.Get("function.arguments")
		if args.IsObject() {
			call.Arguments, _ = args.Value().(map[string]any)
		} else {
			call.RawArguments = args.String()
		}
		out = append(out, call)
		return true
	})
	return out
}

// restError builds an error from an {message, code, metadata?} object. The
// metadata, when present, is more precise than the message.
func restError(op string, e gjson.Result, fallbackCode string) *model.Error {
	code := e.Get("code").String()
	if code == "" {
		code = fallbackCode
	}
	msg := e.Get("message").String()
	if md := e.Get("metadata"); md.Exists() {
		msg = md.Raw
	}
	return &model.Error{Kind: model.KindProvider, Op: op, Code: code, Msg: msg}
}

func classifyRESTError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return model.E(model.KindProviderUnavailable, op, err)
	}

	status := strconv.Itoa(apiErr.StatusCode)
	for _, body := range errorBodies(apiErr) {
		if !gjson.Valid(body) {
			continue
		}
		if e := gjson.Get(body, "error"); e.IsObject() {
			return restError(op, e, status)
		}
		if gjson.Get(body, "message").Exists() {
			return restError(op, gjson.Parse(body), status)
		}
	}
	return &model.Error{Kind: model.KindProvider, Op: op, Code: status, Msg: apiErr.Message, Err: err}
}

func errorBodies(apiErr *openai.Error) []string {
	bodies := []string{apiErr.RawJSON()}
	if dump := apiErr.DumpResponse(true); len(dump) > 0 {
		if i := bytes.Index(dump, []byte("\r\n\r\n")); i >= 0 {
			bodies = append(bodies, string(dump[i+4:]))
		}
	}
	return bodies
}
