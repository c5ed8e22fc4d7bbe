package manager

import (
	"encoding/json"

	"agentcore/model"
	"agentcore/vector"
)

// Identities of the built-in agents.
const (
	OrchestratorID       = "agent@orchestrator"
	AgentGenSmallID      = "agent@agent-gen-small"
	AgentGenLargeID      = "agent@agent-gen-large"
	PromptGenID          = "agent@prompt-gen"
	MessageProposalID    = "agent@message-proposal"
	TasksProposalID      = "agent@tasks-proposal"
	SearchID             = "agent@search"
	RewriteAssistantID   = "agent@rewrite-assistant"
	TranslateAssistantID = "agent@translate-assistant"
	DefaultEmbedID       = "agent@default-embed"
)

// RoleAssistant marks agents offered to end users as writing assistants.
const RoleAssistant = "writing-assistant"

var tasksProposalFormat = json.RawMessage(`{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "name": {"type": "string"},
      "description": {"type": "string"},
      "urgency": {"type": "integer", "enum": [1, 2, 3]},
      "importance": {"type": "integer", "enum": [1, 2, 3]},
      "priority": {"type": "integer", "enum": [1, 2, 3]}
    },
    "required": ["name", "description", "urgency", "importance", "priority"]
  }
}`)

// Builtins returns the built-in agent definitions keyed by identity. Each
// call returns fresh values.
func Builtins() map[string]model.AgentDefinition {
	return map[string]model.AgentDefinition{
		OrchestratorID: {
			Name:     "Orchestrator",
			Role:     "agent-generator",
			Provider: model.ProviderOpenAI,
			Model:    "openai/gpt-4o",
			Prompt: `You design teams of AI agents. Given a mission, describe the smallest set of
specialised agents able to complete it: for each agent give a short name, its role, its
expertise, the context it works in, its objectives and the names of the agents it may
delegate to.`,
			Format: agentPlanFormat,
		},
		AgentGenSmallID: {
			Name:     "AgentGen (small)",
			Role:     "agent-generator",
			Provider: model.ProviderOllama,
			Model:    "mistral-small",
			Prompt:   "You write the JSON specification of a single AI agent for the role you are given.",
			Format:   agentSpecFormat,
		},
		AgentGenLargeID: {
			Name:     "AgentGen (large)",
			Role:     "agent-generator",
			Provider: model.ProviderOpenAI,
			Model:    "openai/gpt-4o",
			Prompt: `You write the JSON specification of a single AI agent for the role you are given.
Be precise about its expertise, objectives and delegation.`,
			Format: agentSpecFormat,
		},
		PromptGenID: {
			Name:     "PromptGen",
			Role:     "prompt-generator",
			Provider: model.ProviderOpenAI,
			Model:    "openai/gpt-4o",
			Prompt:   "You turn an agent specification into a clear and complete system prompt. Answer with the prompt only.",
		},
		MessageProposalID: {
			Name:     "Writer",
			Role:     "redaction",
			Provider: model.ProviderOllama,
			Model:    "mistral-small",
			Prompt:   "You draft a reply to the conversation you are given. Keep the tone of the conversation.",
		},
		TasksProposalID: {
			Name:     "Project manager",
			Role:     "agent",
			Provider: model.ProviderOllama,
			Model:    "mistral-small",
			Prompt:   "You extract the tasks to do from the text you are given and rate their urgency, importance and priority from 1 to 3.",
			Format:   tasksProposalFormat,
		},
		SearchID: {
			Name:          "Search",
			Role:          "agent",
			Provider:      model.ProviderOllama,
			Model:         "mistral-small",
			Prompt:        "You answer questions by searching the indexed documents. Cite the documents you used.",
			ToolServiceID: "indexer",
			Tools: []model.ToolDeclaration{
				model.NewToolDeclaration("searchDistance", "Search documents by sentence similarity", map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "query",
						},
					},
					"required": []string{"query"},
				}),
			},
		},
		RewriteAssistantID: {
			Name:     "Rewrite",
			Role:     RoleAssistant,
			Provider: model.ProviderOllama,
			Model:    "mistral-small",
			Prompt:   "You rewrite the text you are given to make it clearer. Keep its language and meaning.",
		},
		TranslateAssistantID: {
			Name:     "Translate",
			Role:     RoleAssistant,
			Provider: model.ProviderOllama,
			Model:    "mistral-small",
			Prompt:   "You translate the text you are given. Answer with the translation only.",
		},
		DefaultEmbedID: {
			Name:          "Embed",
			Role:          "embedder",
			Provider:      model.ProviderOllama,
			Model:         "granite-embedding:278m",
			VectorQuality: vector.Int8,
		},
	}
}
