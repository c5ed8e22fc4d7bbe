package config

import (
	"time"

	"agentcore/budget"
	"agentcore/embedding"
	"agentcore/ollama"
	"agentcore/provider"
)

func Default() *Config {
	return &Config{
		DataDirectory: "~/.local/share/agentcore",
		LogLevel:      "info",
		LogFormat:     "text",
		Providers: ProvidersConfig{
			Ollama: OllamaConfig{Host: ollama.DefaultHost},
			OpenAI: OpenAIConfig{
				BaseURL:    "https://openrouter.ai/api/v1",
				MaxRetries: 2,
				Timeout:    5 * time.Minute,
			},
			EmbedConcurrency: provider.DefaultEmbedConcurrency,
		},
		Store: StoreConfig{Driver: "sqlite", Prefix: "agent"},
		Embedding: EmbeddingConfig{
			BatchSize: embedding.DefaultBatchSize,
		},
		Agents: AgentsConfig{
			Version:      1,
			MaxToolTurns: 8,
		},
		Budget: BudgetConfig{
			MaxTokens: 32000,
			Buffer:    budget.DefaultBuffer,
			Tokenizer: "words",
		},
	}
}

func GenerateConfigTemplate() string {
	return `# agentcore configuration
# Location: ~/.config/agentcore/config.toml (override with AGENTCORE_CONFIG)
# This file uses TOML format: https://toml.io

# Directory holding agent records
data_directory = "~/.local/share/agentcore"

# debug, info, warn or error; text, logfmt or json
log_level = "info"
log_format = "text"

# Profile applied by "agentcore sync" when none is given
# default_profile = "local"

[providers.ollama]
host = "http://127.0.0.1:11434"

[providers.openai]
base_url = "https://openrouter.ai/api/v1"
# api_key = ""
max_retries = 2
timeout = "5m"

[store]
# memory, file, sqlite or redis
driver = "sqlite"
# address = "127.0.0.1:6379"

[embedding]
batch_size = 50
# prefix = "passage: "

[agents]
version = 1
max_tool_turns = 8

[budget]
max_tokens = 32000
buffer = 16000
# words, or a tiktoken encoding such as cl100k_base
tokenizer = "words"

# [settings.local]
# provider = "ollama"
# model = "qwen3:8b"
# host = "http://127.0.0.1:11434"

# [profiles.local]
# "agent@orchestrator" = "local"

# [[mcp]]
# id = "indexer"
# command = "indexer-mcp"
`
}
