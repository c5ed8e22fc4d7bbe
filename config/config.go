package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"agentcore/mcp"
	"agentcore/model"

	"github.com/BurntSushi/toml"
)

type OllamaConfig struct {
	Host    string            `toml:"host"`
	Headers map[string]string `toml:"headers"`
}

type OpenAIConfig struct {
	BaseURL    string        `toml:"base_url"`
	APIKey     string        `toml:"api_key"`
	MaxRetries int           `toml:"max_retries"`
	Timeout    time.Duration `toml:"timeout"`
}

type ProvidersConfig struct {
	Ollama OllamaConfig `toml:"ollama"`
	OpenAI OpenAIConfig `toml:"openai"`
	// EmbedConcurrency bounds concurrent single-text embed requests against
	// a local server.
	EmbedConcurrency int `toml:"embed_concurrency"`
}

// StoreConfig selects where agent records live: "memory", "file",
// "sqlite" or "redis".
type StoreConfig struct {
	Driver  string `toml:"driver"`
	Address string `toml:"address"`
	Prefix  string `toml:"prefix"`
}

type EmbeddingConfig struct {
	BatchSize int    `toml:"batch_size"`
	Prefix    string `toml:"prefix"`
}

type AgentsConfig struct {
	// Version is the record version agents are upgraded to.
	Version      int `toml:"version"`
	MaxToolTurns int `toml:"max_tool_turns"`
}

// BudgetConfig configures the context budgeter. Tokenizer is "words" for
// the word count estimate or a tiktoken encoding name.
type BudgetConfig struct {
	MaxTokens int    `toml:"max_tokens"`
	Buffer    int    `toml:"buffer"`
	Tokenizer string `toml:"tokenizer"`
}

type Config struct {
	DataDirectory   string          `toml:"data_directory"`
	LogLevel        string          `toml:"log_level"`
	LogFormat       string          `toml:"log_format"`
	DefaultProfile  string          `toml:"default_profile"`
	DefaultSettings string          `toml:"default_settings"`
	Providers       ProvidersConfig `toml:"providers"`
	Store           StoreConfig     `toml:"store"`
	Embedding       EmbeddingConfig `toml:"embedding"`
	Agents          AgentsConfig    `toml:"agents"`
	Budget          BudgetConfig    `toml:"budget"`
	// Profiles map a profile name to agent id -> settings name rules.
	Profiles map[string]map[string]string `toml:"profiles"`
	// Settings are named agent definitions referenced by profiles.
	Settings map[string]model.AgentDefinition `toml:"settings"`
	MCP      []mcp.ServerConfig               `toml:"mcp"`
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// Profile returns the rules of a profile, or of the default profile when
// name is empty.
func (c *Config) Profile(name string) (map[string]string, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	rules, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile: %s", name)
	}
	return rules, nil
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("AGENTCORE_OLLAMA_HOST"); host != "" {
		c.Providers.Ollama.Host = host
	}
	if url := os.Getenv("AGENTCORE_OPENAI_BASE_URL"); url != "" {
		c.Providers.OpenAI.BaseURL = url
	}
	if key := os.Getenv("AGENTCORE_OPENAI_API_KEY"); key != "" {
		c.Providers.OpenAI.APIKey = key
	}
	if driver := os.Getenv("AGENTCORE_STORE"); driver != "" {
		c.Store.Driver = driver
	}
	if addr := os.Getenv("AGENTCORE_STORE_ADDRESS"); addr != "" {
		c.Store.Address = addr
	}
	if level := os.Getenv("AGENTCORE_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if dataDir := os.Getenv("AGENTCORE_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if turns := os.Getenv("AGENTCORE_MAX_TOOL_TURNS"); turns != "" {
		if n, err := strconv.Atoi(turns); err == nil {
			c.Agents.MaxToolTurns = n
		}
	}
	if CheckDebug() {
		c.LogLevel = "debug"
	}
}

// CheckDebug reports whether AGENTCORE_DEBUG is set.
func CheckDebug() bool {
	debug := os.Getenv("AGENTCORE_DEBUG")
	return debug == "true" || debug == "1"
}

// Load reads the configuration file at path, or at ConfigPath when path is
// empty. A missing file yields the defaults. Environment overrides are
// applied last.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = ConfigPath()
	}

	if FileExists(path) {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "file", "sqlite":
	case "redis":
		if c.Store.Address == "" {
			return fmt.Errorf("store driver redis requires an address")
		}
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	if c.DefaultProfile != "" {
		if _, ok := c.Profiles[c.DefaultProfile]; !ok {
			return fmt.Errorf("default profile %s is not defined", c.DefaultProfile)
		}
	}
	for profile, rules := range c.Profiles {
		for agentID, settings := range rules {
			if _, ok := c.Settings[settings]; !ok {
				return fmt.Errorf("profile %s: agent %s uses undefined settings %s", profile, agentID, settings)
			}
		}
	}
	return nil
}

// Save writes cfg to path with user-only permissions.
func Save(cfg *Config, path string) error {
	if err := EnsureParentDir(path); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create with secure permissions (0600 - may contain API keys)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// CreateDefault writes the commented template to path unless a file exists.
func CreateDefault(path string) error {
	if FileExists(path) {
		return nil
	}
	if err := EnsureParentDir(path); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
