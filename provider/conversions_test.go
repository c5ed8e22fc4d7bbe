package provider

import (
	"encoding/base64"
	"testing"

	"agentcore/model"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToOllamaMessages(t *testing.T) {
	img := base64.StdEncoding.EncodeToString([]byte("png"))
	tests := []struct {
		name     string
		input    []model.Message
		expected []api.Message
	}{
		{
			name:     "empty slice",
			input:    []model.Message{},
			expected: []api.Message{},
		},
		{
			name: "user with image",
			input: []model.Message{
				{Role: "user", Content: "What is this?", Images: []string{img, "%%%"}},
			},
			expected: []api.Message{
				{Role: "user", Content: "What is this?", Images: []api.ImageData{api.ImageData("png")}},
			},
		},
		{
			name: "tool reply",
			input: []model.Message{
				{Role: "tool", Content: "42", ToolCallID: "id-1", Name: "calc"},
			},
			expected: []api.Message{
				{Role: "tool", Content: "42", ToolName: "calc"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConvertToOllamaMessages(tt.input))
		})
	}
}

func TestToolCallConversionsRoundTrip(t *testing.T) {
	assert.Nil(t, ConvertToProviderToolCalls(nil))
	assert.Nil(t, ConvertFromProviderToolCalls(nil))

	calls := ConvertFromProviderToolCalls([]model.ToolCall{
		{ID: "a", Name: "search", Arguments: map[string]any{"q": "go"}},
		{ID: "b", Name: "fetch", RawArguments: `{"url":"x"}`},
	})
	require.Len(t, calls, 2)
	assert.Equal(t, "search", calls[0].Function.Name)
	assert.Equal(t, "x", calls[1].Function.Arguments["url"])

	back := ConvertToProviderToolCalls(calls)
	require.Len(t, back, 2)
	assert.NotEmpty(t, back[0].ID)
	assert.NotEqual(t, back[0].ID, back[1].ID)
	assert.Equal(t, map[string]any{"q": "go"}, back[0].Arguments)
}

func TestConvertToOllamaTools(t *testing.T) {
	assert.Nil(t, ConvertToOllamaTools(nil))

	tools := ConvertToOllamaTools([]model.ToolDeclaration{{
		Function: model.ToolFunction{
			Name:        "indexer.searchDistance",
			Description: "similarity search",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "request"},
					"mode":  map[string]any{"type": []any{"string", "null"}, "enum": []any{"fast", "exact"}},
				},
				"required": []any{"query"},
			},
		},
	}})
	require.Len(t, tools, 1)

	tool := tools[0]
	assert.Equal(t, "function", tool.Type)
	assert.Equal(t, "indexer.searchDistance", tool.Function.Name)
	assert.Equal(t, []string{"query"}, tool.Function.Parameters.Required)
	assert.Equal(t, api.PropertyType{"string"}, tool.Function.Parameters.Properties["query"].Type)
	assert.Equal(t, "request", tool.Function.Parameters.Properties["query"].Description)
	assert.Equal(t, api.PropertyType{"string", "null"}, tool.Function.Parameters.Properties["mode"].Type)
	assert.Equal(t, []any{"fast", "exact"}, tool.Function.Parameters.Properties["mode"].Enum)
}

func TestConvertToOpenAIMessages(t *testing.T) {
	msgs := ConvertToOpenAIMessages([]model.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", ToolCalls: []model.ToolCall{{ID: "c1", Name: "f", RawArguments: `{"a":1}`}}},
		{Role: "tool", Content: "ok", ToolCallID: "c1"},
		{Role: "user", Content: "see", Images: []string{"aGk="}},
	})
	require.Len(t, msgs, 4)

	assert.Equal(t, map[string]any{"role": "user", "content": "hi"}, msgs[0])
	assert.NotContains(t, msgs[0], "tool_calls")
	calls := msgs[1]["tool_calls"].([]map[string]any)
	assert.Equal(t, "c1", calls[0]["id"])
	assert.Equal(t, `{"a":1}`, calls[0]["function"].(map[string]any)["arguments"])
	assert.Equal(t, "c1", msgs[2]["tool_call_id"])
	parts := msgs[3]["content"].([]map[string]any)
	assert.Len(t, parts, 2)
}

func TestParseToolArguments(t *testing.T) {
	assert.Equal(t, map[string]any{"a": "b"}, ParseToolArguments(`{"a":"b"}`))
	assert.Equal(t, map[string]any{}, ParseToolArguments("garbage"))
	assert.Equal(t, map[string]any{}, ParseToolArguments("null"))
}
