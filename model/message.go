package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message roles understood by both backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message in a conversation context.
//
// Messages are append-only once stored: the ordered history of a context is
// sent verbatim to the model on every turn.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Images     []string   `json:"images,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitzero"`
}

// ToolCall is a model-issued request to invoke a tool.
//
// Backends return arguments either as an object (Ollama) or as serialized
// JSON text (OpenAI-compatible APIs). Both forms are kept so that the call can
// be replayed to the backend that produced it.
type ToolCall struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	RawArguments string         `json:"raw_arguments,omitempty"`
}

// Args resolves the argument payload, parsing the serialized form if needed.
func (tc ToolCall) Args() (map[string]any, error) {
	if tc.Arguments != nil {
		return tc.Arguments, nil
	}
	if tc.RawArguments == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.RawArguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments for tool %s: %w", tc.Name, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// ArgumentsJSON returns the serialized argument payload.
func (tc ToolCall) ArgumentsJSON() string {
	if tc.RawArguments != "" {
		return tc.RawArguments
	}
	if tc.Arguments == nil {
		return "{}"
	}
	b, err := json.Marshal(tc.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ToolDeclaration describes a callable tool in the OpenAI function form,
// which both backends accept.
type ToolDeclaration struct {
	Type     string       `json:"type" toml:"type"`
	Function ToolFunction `json:"function" toml:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name" toml:"name"`
	Description string         `json:"description,omitempty" toml:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" toml:"parameters"`
}

// NewToolDeclaration builds a function tool declaration.
func NewToolDeclaration(name, description string, parameters map[string]any) ToolDeclaration {
	return ToolDeclaration{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}
