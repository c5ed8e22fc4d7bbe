package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agentcore/config"
	"agentcore/model"
	"agentcore/provider"
	"agentcore/storage"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentcore", "config.toml")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "init", "--config", path})
	require.NoError(t, root.Execute())
	assert.Equal(t, path, strings.TrimSpace(out.String()))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)

	root = newRootCmd()
	root.SetArgs([]string{"config", "init", "--config", path})
	assert.ErrorContains(t, root.Execute(), "already exists")
}

func TestSyncAndListWithFileStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_directory = "`+filepath.ToSlash(filepath.Join(dir, "data"))+`"
log_level = "error"

[store]
driver = "file"
`), 0600))

	root := newRootCmd()
	root.SetArgs([]string{"sync", "--config", path})
	require.NoError(t, root.Execute())

	var out bytes.Buffer
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"list", "--status", "published", "--config", path})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "agent@orchestrator")
	assert.Contains(t, out.String(), "agent@default-embed")
}

func TestListSummariesFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	for id, status := range map[string]model.Status{"agent@a": model.StatusPublished, "agent@b": model.StatusTrashed} {
		require.NoError(t, st.Put(ctx, model.AgentState{
			Version:    1,
			Definition: model.AgentDefinition{ID: id, Meta: model.Meta{Status: status}},
		}))
	}

	all, err := listSummaries(ctx, st, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	trashed, err := listSummaries(ctx, st, model.StatusTrashed)
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	assert.Equal(t, "agent@b", trashed[0].ID)
}

func TestBudgetedPrompt(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(doc, []byte("the sky is blue"), 0600))

	prompt, err := budgetedPrompt(config.BudgetConfig{MaxTokens: 1000, Buffer: 10, Tokenizer: "words"}, "what colour is the sky?", []string{doc})
	require.NoError(t, err)
	assert.Contains(t, prompt, "the sky is blue")
	assert.Contains(t, prompt, "notes.md")
	assert.Contains(t, prompt, "what colour is the sky?")

	_, err = budgetedPrompt(config.BudgetConfig{MaxTokens: 1000}, "q", []string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestProvidersRouteBySelector(t *testing.T) {
	cfg := config.Default()
	get := providers(cfg, log.Default())

	p, err := get(model.AgentDefinition{Provider: model.ProviderOpenAI, Host: model.DefaultDefinition().Host})
	require.NoError(t, err)
	assert.IsType(t, &provider.OpenAIProvider{}, p)

	p, err = get(model.AgentDefinition{Provider: model.ProviderOllama, Host: "http://gpu:11434"})
	require.NoError(t, err)
	assert.IsType(t, &provider.OllamaProvider{}, p)

	_, err = get(model.AgentDefinition{Provider: "mystery"})
	assert.Error(t, err)
}
