package provider

import (
	"encoding/base64"
	"encoding/json"

	"agentcore/model"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
)

// ConvertToOllamaMessages converts model.Message to Ollama api.Message.
//
// Images are expected base64-encoded and are decoded to raw bytes; entries
// that are not valid base64 are skipped. Tool replies carry the tool name in
// ToolName since the Ollama API has no call ids.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		out := api.Message{
			Role:      msg.Role,
			Content:   msg.Content,
			ToolCalls: ConvertFromProviderToolCalls(msg.ToolCalls),
			ToolName:  msg.Name,
		}
		for _, img := range msg.Images {
			data, err := base64.StdEncoding.DecodeString(img)
			if err != nil {
				continue
			}
			out.Images = append(out.Images, api.ImageData(data))
		}
		result[i] = out
	}
	return result
}

// ParseToolArguments parses JSON arguments string into a map.
// If parsing fails, an empty map is returned.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args == nil {
		return make(map[string]any)
	}
	return args
}

// ConvertToProviderToolCalls converts Ollama api.ToolCall to model.ToolCall.
//
// Ollama does not identify tool calls, so each call gets a synthetic id that
// the matching tool reply will carry.
//
// Returns nil if the input is nil or empty.
func ConvertToProviderToolCalls(ollamaCalls []api.ToolCall) []model.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]model.ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		result[i] = model.ToolCall{
			ID:        uuid.NewString(),
			Name:      call.Function.Name,
			Arguments: map[string]any(call.Function.Arguments),
		}
	}
	return result
}

// ConvertFromProviderToolCalls converts model.ToolCall to Ollama api.ToolCall,
// parsing serialized arguments when needed.
//
// Returns nil if the input is nil or empty.
func ConvertFromProviderToolCalls(providerCalls []model.ToolCall) []api.ToolCall {
	if len(providerCalls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(providerCalls))
	for i, call := range providerCalls {
		args := call.Arguments
		if args == nil {
			args = ParseToolArguments(call.RawArguments)
		}
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Name:      call.Name,
				Arguments: args,
			},
		}
	}
	return result
}

// ConvertToOllamaTools converts function declarations to Ollama api.Tool.
func ConvertToOllamaTools(decls []model.ToolDeclaration) []api.Tool {
	if len(decls) == 0 {
		return nil
	}

	tools := make([]api.Tool, 0, len(decls))
	for _, decl := range decls {
		toolType := decl.Type
		if toolType == "" {
			toolType = "function"
		}
		tools = append(tools, api.Tool{
			Type: toolType,
			Function: api.ToolFunction{
				Name:        decl.Function.Name,
				Description: decl.Function.Description,
				Parameters:  convertParameters(decl.Function.Parameters),
			},
		})
	}
	return tools
}

// convertParameters converts a JSON schema object to Ollama ToolFunctionParameters.
func convertParameters(schema map[string]any) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       "object",
		Properties: make(map[string]api.ToolProperty),
	}
	if schema == nil {
		return params
	}

	if t, ok := schema["type"].(string); ok {
		params.Type = t
	}
	if defs, ok := schema["$defs"].(map[string]any); ok {
		params.Defs = defs
	}
	switch req := schema["required"].(type) {
	case []string:
		params.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				params.Required = append(params.Required, s)
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for name, prop := range props {
			params.Properties[name] = convertPropertyValue(prop)
		}
	}
	return params
}

// convertPropertyValue converts one JSON schema property to an Ollama ToolProperty.
func convertPropertyValue(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		// Typed schemas (structs, json.RawMessage) go through a JSON round trip.
		bytes, err := json.Marshal(propValue)
		if err != nil {
			return toolProp
		}
		var m map[string]any
		if err := json.Unmarshal(bytes, &m); err != nil {
			return toolProp
		}
		propMap = m
	}

	// type can be a string or a list of strings
	switch t := propMap["type"].(type) {
	case string:
		toolProp.Type = api.PropertyType{t}
	case []string:
		toolProp.Type = api.PropertyType(t)
	case []any:
		types := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				types = append(types, s)
			}
		}
		toolProp.Type = api.PropertyType(types)
	}

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}
	if enumSlice, ok := propMap["enum"].([]any); ok {
		toolProp.Enum = enumSlice
	}
	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}
	if anyOfSlice, ok := propMap["anyOf"].([]any); ok {
		anyOfProps := make([]api.ToolProperty, 0, len(anyOfSlice))
		for _, item := range anyOfSlice {
			anyOfProps = append(anyOfProps, convertPropertyValue(item))
		}
		toolProp.AnyOf = anyOfProps
	}

	return toolProp
}

// ConvertToOpenAIMessages converts model.Message to the chat/completions wire
// format. Tool-call fields are only emitted on the messages they belong to.
func ConvertToOpenAIMessages(messages []model.Message) []map[string]any {
	result := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		out := map[string]any{"role": msg.Role, "content": msg.Content}

		if len(msg.Images) > 0 {
			parts := []map[string]any{{"type": "text", "text": msg.Content}}
			for _, img := range msg.Images {
				parts = append(parts, map[string]any{
					"type":      "image_url",
					"image_url": map[string]any{"url": "data:image/png;base64," + img},
				})
			}
			out["content"] = parts
		}

		switch msg.Role {
		case model.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				calls := make([]map[string]any, len(msg.ToolCalls))
				for i, call := range msg.ToolCalls {
					calls[i] = map[string]any{
						"id":   call.ID,
						"type": "function",
						"function": map[string]any{
							"name":      call.Name,
							"arguments": call.ArgumentsJSON(),
						},
					}
				}
				out["tool_calls"] = calls
			}
		case model.RoleTool:
			out["tool_call_id"] = msg.ToolCallID
			if msg.Name != "" {
				out["name"] = msg.Name
			}
		}
		result = append(result, out)
	}
	return result
}
