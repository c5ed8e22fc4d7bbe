package testutil

import (
	"context"
	"fmt"
	"sync"

	"agentcore/model"
)

// MockProvider implements model.Provider for testing. Every call is recorded;
// behavior is configured through the Func fields.
type MockProvider struct {
	ChatFunc       func(ctx context.Context, req model.ChatRequest, callback model.StreamCallback) (*model.ChatResponse, error)
	GenerateFunc   func(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error)
	EmbedFunc      func(ctx context.Context, modelName, text string) ([]float32, error)
	EmbedBatchFunc func(ctx context.Context, modelName string, texts []string) ([][]float32, error)

	mu          sync.Mutex
	chatCalls   []model.ChatRequest
	genCalls    []model.GenerateRequest
	embedCalls  []string
	batchCalls  [][]string
	scriptIndex int
}

// NewMockProvider creates a mock provider with default implementations.
func NewMockProvider() *MockProvider {
	mock := &MockProvider{}
	mock.ChatFunc = mock.defaultChat
	mock.GenerateFunc = mock.defaultGenerate
	mock.EmbedFunc = mock.defaultEmbed
	mock.EmbedBatchFunc = mock.defaultEmbedBatch
	return mock
}

// NewScriptedProvider returns a mock whose chat calls answer with the given
// responses in order. Calls past the end of the script fail.
func NewScriptedProvider(responses ...model.ChatResponse) *MockProvider {
	mock := NewMockProvider()
	mock.ChatFunc = func(ctx context.Context, req model.ChatRequest, callback model.StreamCallback) (*model.ChatResponse, error) {
		mock.mu.Lock()
		i := mock.scriptIndex
		mock.scriptIndex++
		mock.mu.Unlock()
		if i >= len(responses) {
			return nil, fmt.Errorf("unexpected chat call %d", i+1)
		}
		resp := responses[i]
		if resp.Message.Role == "" {
			resp.Message.Role = model.RoleAssistant
		}
		if req.Stream && callback != nil {
			if err := callback(resp.Message.Content, resp.Message.ToolCalls); err != nil {
				return nil, err
			}
		}
		return &resp, nil
	}
	return mock
}

// Reply builds a plain assistant response.
func Reply(content string) model.ChatResponse {
	return model.ChatResponse{Message: model.Message{Role: model.RoleAssistant, Content: content}}
}

// ToolCallReply builds an assistant response requesting tool calls.
func ToolCallReply(calls ...model.ToolCall) model.ChatResponse {
	return model.ChatResponse{Message: model.Message{Role: model.RoleAssistant, ToolCalls: calls}}
}

func (m *MockProvider) defaultChat(ctx context.Context, req model.ChatRequest, callback model.StreamCallback) (*model.ChatResponse, error) {
	// Default: echo back a mock response
	resp := Reply("Mock response")
	if req.Stream && callback != nil {
		if err := callback(resp.Message.Content, nil); err != nil {
			return nil, err
		}
	}
	return &resp, nil
}

func (m *MockProvider) defaultGenerate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	return &model.GenerateResponse{Text: "Mock generation"}, nil
}

func (m *MockProvider) defaultEmbed(ctx context.Context, modelName, text string) ([]float32, error) {
	return []float32{float32(len(text)) / 100}, nil
}

func (m *MockProvider) defaultEmbedBatch(ctx context.Context, modelName string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)) / 100}
	}
	return out, nil
}

func (m *MockProvider) Chat(ctx context.Context, req model.ChatRequest, callback model.StreamCallback) (*model.ChatResponse, error) {
	m.mu.Lock()
	req.Messages = append([]model.Message(nil), req.Messages...)
	m.chatCalls = append(m.chatCalls, req)
	m.mu.Unlock()
	return m.ChatFunc(ctx, req, callback)
}

func (m *MockProvider) Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	m.mu.Lock()
	m.genCalls = append(m.genCalls, req)
	m.mu.Unlock()
	return m.GenerateFunc(ctx, req)
}

func (m *MockProvider) Embed(ctx context.Context, modelName, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls = append(m.embedCalls, text)
	m.mu.Unlock()
	return m.EmbedFunc(ctx, modelName, text)
}

func (m *MockProvider) EmbedBatch(ctx context.Context, modelName string, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls = append(m.batchCalls, texts)
	m.mu.Unlock()
	return m.EmbedBatchFunc(ctx, modelName, texts)
}

// ChatCalls returns the recorded chat requests.
func (m *MockProvider) ChatCalls() []model.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ChatRequest(nil), m.chatCalls...)
}

// GenerateCalls returns the recorded generate requests.
func (m *MockProvider) GenerateCalls() []model.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.GenerateRequest(nil), m.genCalls...)
}

// EmbedCalls returns the texts of recorded single embed calls.
func (m *MockProvider) EmbedCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.embedCalls...)
}

// BatchCalls returns the inputs of recorded batch embed calls.
func (m *MockProvider) BatchCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.batchCalls...)
}
