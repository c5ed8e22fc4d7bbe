package testutil

import (
	"time"

	"agentcore/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// TestMessages returns a sample conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Content: "Hello, how are you?", Timestamp: time.Now()},
		{Role: model.RoleAssistant, Content: "I'm doing well, thank you!", Timestamp: time.Now()},
		{Role: model.RoleUser, Content: "Can you help me with a task?", Timestamp: time.Now()},
	}
}

// SearchTool returns a function declaration taking a single query.
func SearchTool() model.ToolDeclaration {
	return model.NewToolDeclaration("searchDistance", "Search by sentence similarity", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "request"},
		},
		"required": []any{"query"},
	})
}

// TestMCPTools returns the tools of a document indexer server.
func TestMCPTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		{
			Name:        "searchDistance",
			Description: "Search indexed documents by sentence similarity",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "sentence to look for",
					},
					"limit": map[string]any{"type": "integer"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "addDocument",
			Description: "Index a document",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"title":   map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
				Required: []string{"title", "content"},
			},
		},
	}
}
