package mcp

import (
	"testing"

	"agentcore/model"
	"agentcore/provider/testutil"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func TestToolsToDeclarations(t *testing.T) {
	tests := []struct {
		name     string
		input    []mcptypes.Tool
		expected int // expected tool count
		validate func(t *testing.T, result []model.ToolDeclaration)
	}{
		{
			name:     "empty tools",
			input:    []mcptypes.Tool{},
			expected: 0,
		},
		{
			name: "single simple tool",
			input: []mcptypes.Tool{
				{
					Name:        "get_weather",
					Description: "Get current weather",
					InputSchema: mcptypes.ToolInputSchema{Type: "object"},
				},
			},
			expected: 1,
			validate: func(t *testing.T, result []model.ToolDeclaration) {
				if result[0].Type != "function" {
					t.Errorf("expected type 'function', got %q", result[0].Type)
				}
				if result[0].Function.Name != "get_weather" {
					t.Errorf("expected name 'get_weather', got %q", result[0].Function.Name)
				}
				if _, ok := result[0].Function.Parameters["properties"].(map[string]any); !ok {
					t.Errorf("expected empty properties map, got %#v", result[0].Function.Parameters["properties"])
				}
				if _, ok := result[0].Function.Parameters["required"]; ok {
					t.Errorf("expected no required list")
				}
			},
		},
		{
			name: "tool with properties and defs",
			input: []mcptypes.Tool{
				{
					Name:        "calculate",
					Description: "Perform calculation",
					InputSchema: mcptypes.ToolInputSchema{
						Type: "object",
						Properties: map[string]any{
							"operation": map[string]any{
								"type": "string",
								"enum": []any{"add", "subtract"},
							},
						},
						Required: []string{"operation"},
						Defs:     map[string]any{"num": map[string]any{"type": "number"}},
					},
				},
			},
			expected: 1,
			validate: func(t *testing.T, result []model.ToolDeclaration) {
				params := result[0].Function.Parameters
				props, ok := params["properties"].(map[string]any)
				if !ok || props["operation"] == nil {
					t.Errorf("expected operation property, got %#v", params["properties"])
				}
				required, ok := params["required"].([]string)
				if !ok || len(required) != 1 || required[0] != "operation" {
					t.Errorf("expected required [operation], got %#v", params["required"])
				}
				if params["$defs"] == nil {
					t.Errorf("expected $defs to be kept")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToolsToDeclarations(tt.input)
			if len(result) != tt.expected {
				t.Fatalf("expected %d tools, got %d", tt.expected, len(result))
			}
			if tt.validate != nil {
				tt.validate(t, result)
			}
		})
	}
}

func TestToolsToDeclarationsKeepsOrder(t *testing.T) {
	result := ToolsToDeclarations(testutil.TestMCPTools())
	if len(result) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(result))
	}
	if result[0].Function.Name != "searchDistance" || result[1].Function.Name != "addDocument" {
		t.Errorf("unexpected order: %s, %s", result[0].Function.Name, result[1].Function.Name)
	}
	if result[0].Type != "function" {
		t.Errorf("expected function type, got %q", result[0].Type)
	}
	required, _ := result[0].Function.Parameters["required"].([]string)
	if len(required) != 1 || required[0] != "query" {
		t.Errorf("expected required [query], got %#v", result[0].Function.Parameters["required"])
	}
}
