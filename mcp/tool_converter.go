package mcp

import (
	"agentcore/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ToolsToDeclarations converts MCP tools to agent tool declarations.
//
// MCP Tool structure:
//
//	{
//	  "name": "get_weather",
//	  "description": "Get weather data",
//	  "inputSchema": {
//	    "type": "object",
//	    "properties": {...},
//	    "required": [...]
//	  }
//	}
//
// Declaration structure (OpenAI function form):
//
//	{
//	  "type": "function",
//	  "function": {
//	    "name": "get_weather",
//	    "description": "Get weather data",
//	    "parameters": {...}
//	  }
//	}
func ToolsToDeclarations(mcpTools []mcptypes.Tool) []model.ToolDeclaration {
	if len(mcpTools) == 0 {
		return nil
	}

	result := make([]model.ToolDeclaration, len(mcpTools))
	for i, tool := range mcpTools {
		result[i] = model.NewToolDeclaration(tool.Name, tool.Description, inputSchemaToParameters(tool.InputSchema))
	}
	return result
}

func inputSchemaToParameters(schema mcptypes.ToolInputSchema) map[string]any {
	schemaType := schema.Type
	if schemaType == "" {
		schemaType = "object"
	}
	properties := schema.Properties
	if properties == nil {
		properties = map[string]any{}
	}

	params := map[string]any{
		"type":       schemaType,
		"properties": properties,
	}
	if len(schema.Required) > 0 {
		params["required"] = schema.Required
	}
	if schema.Defs != nil {
		params["$defs"] = schema.Defs
	}
	return params
}

// Declarations returns the tool declarations of a running server.
func (pm *ProcessManager) Declarations(id string) ([]model.ToolDeclaration, error) {
	srv, err := pm.Get(id)
	if err != nil {
		return nil, err
	}
	return ToolsToDeclarations(srv.Tools), nil
}
