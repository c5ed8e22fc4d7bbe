package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 50, cfg.Embedding.BatchSize)
	assert.Equal(t, 8, cfg.Agents.MaxToolTurns)
	assert.Equal(t, 5*time.Minute, cfg.Providers.OpenAI.Timeout)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
data_directory = "/tmp/agents"
default_profile = "local"

[providers.ollama]
host = "http://gpu:11434"

[providers.openai]
timeout = "30s"

[store]
driver = "memory"

[settings.local]
provider = "ollama"
model = "qwen3:8b"
delegation = ["agent@search"]

[settings.local.options]
temperature = 0.2
num_ctx = 8192

[profiles.local]
"agent@orchestrator" = "local"

[[mcp]]
id = "indexer"
command = "indexer-mcp"
args = ["--stdio"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/agents", cfg.DataDir())
	assert.Equal(t, "http://gpu:11434", cfg.Providers.Ollama.Host)
	assert.Equal(t, 30*time.Second, cfg.Providers.OpenAI.Timeout)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.Providers.OpenAI.BaseURL)

	local := cfg.Settings["local"]
	assert.Equal(t, "qwen3:8b", local.Model)
	assert.Equal(t, []string{"agent@search"}, local.Delegation)
	require.NotNil(t, local.Options.NumCtx)
	assert.Equal(t, 8192, *local.Options.NumCtx)

	rules, err := cfg.Profile("")
	require.NoError(t, err)
	assert.Equal(t, "local", rules["agent@orchestrator"])

	require.Len(t, cfg.MCP, 1)
	assert.Equal(t, []string{"--stdio"}, cfg.MCP[0].Args)
	assert.False(t, cfg.MCP[0].Remote())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AGENTCORE_OLLAMA_HOST", "http://env:11434")
	t.Setenv("AGENTCORE_STORE", "redis")
	t.Setenv("AGENTCORE_STORE_ADDRESS", "127.0.0.1:6379")
	t.Setenv("AGENTCORE_DEBUG", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "http://env:11434", cfg.Providers.Ollama.Host)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown driver", `[store]
driver = "postgres"`, "unknown store driver"},
		{"redis without address", `[store]
driver = "redis"`, "requires an address"},
		{"undefined profile", `default_profile = "missing"`, "not defined"},
		{"undefined settings", `[profiles.local]
"agent@a" = "nope"`, "undefined settings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCreateDefaultParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, CreateDefault(path))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Budget, cfg.Budget)

	cfg.Store.Driver = "file"
	require.NoError(t, Save(cfg, path))
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file", again.Store.Driver)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("warn", "json", &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "agent", "agent@a")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"agent":"agent@a"`)

	_, err = NewLogger("loud", "", nil)
	assert.Error(t, err)
	_, err = NewLogger("info", "xml", nil)
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, "/home/tester/.local/share/agentcore", ExpandPath("~/.local/share/agentcore"))
	assert.Equal(t, "", ExpandPath(""))
	t.Setenv("AGENTCORE_CONFIG", "~/custom.toml")
	assert.Equal(t, "/home/tester/custom.toml", ConfigPath())
}
