package model

import (
	"encoding/json"
	"time"

	"agentcore/vector"
)

// Status is the lifecycle marker of an agent record.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPublished Status = "published"
	StatusTrashed   Status = "trashed"
)

// Provider selectors accepted in agent definitions.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "open-ai"
)

// Meta carries lifecycle information of an agent record.
type Meta struct {
	Status    Status    `json:"status" toml:"-"`
	UpdatedAt time.Time `json:"updatedAt,omitzero" toml:"-"`
}

// AgentDefinition is the configuration of one logical agent.
//
// Definitions are replaced as a whole through patch (unset fields fall back to
// defaults) or changed one field at a time; they are never merged field by
// field otherwise.
type AgentDefinition struct {
	ID            string            `json:"id" toml:"-"`
	Name          string            `json:"name" toml:"name"`
	Role          string            `json:"role" toml:"role"`
	Prompt        string            `json:"prompt" toml:"prompt"`
	Provider      string            `json:"provider" toml:"provider"`
	Model         string            `json:"model" toml:"model"`
	Host          string            `json:"host" toml:"host"`
	Headers       map[string]string `json:"headers,omitempty" toml:"headers"`
	Options       Options           `json:"options" toml:"options"`
	Format        json.RawMessage   `json:"format,omitempty" toml:"-"`
	Tools         []ToolDeclaration `json:"tools,omitempty" toml:"tools"`
	ToolServiceID string            `json:"toolServiceId,omitempty" toml:"tool_service_id"`
	// Delegation lists the agents this agent may ask for help.
	Delegation    []string          `json:"delegation,omitempty" toml:"delegation"`
	Reasoning     *bool             `json:"reasoning,omitempty" toml:"reasoning"`
	VectorQuality vector.Precision  `json:"vectorQuality,omitempty" toml:"vector_quality"`
	Usability     string            `json:"usability,omitempty" toml:"usability"`
	Meta          Meta              `json:"meta" toml:"-"`
}

// DefaultDefinition returns the values unset definition fields fall back to.
func DefaultDefinition() AgentDefinition {
	return AgentDefinition{
		Name:          "agent",
		Role:          "assistant",
		Provider:      ProviderOpenAI,
		Host:          "http://127.0.0.1:11434",
		Headers:       map[string]string{},
		VectorQuality: vector.F32,
		Usability:     "disabled",
		Meta:          Meta{Status: StatusPublished},
	}
}

// Trashed reports whether the definition carries the soft-delete marker.
func (d AgentDefinition) Trashed() bool {
	return d.Meta.Status == StatusTrashed
}

// AgentState is the durable record of an agent: its definition plus the chat
// history of every context. Version is the schema version of the record.
type AgentState struct {
	Version    int                  `json:"version"`
	Definition AgentDefinition      `json:"definition"`
	Messages   map[string][]Message `json:"messages"`
}

// Clone returns a deep copy of the state.
func (s AgentState) Clone() AgentState {
	b, err := json.Marshal(s)
	if err != nil {
		return s
	}
	var out AgentState
	if err := json.Unmarshal(b, &out); err != nil {
		return s
	}
	if out.Messages == nil {
		out.Messages = map[string][]Message{}
	}
	return out
}
