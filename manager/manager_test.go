package manager

import (
	"context"
	"testing"

	"agentcore/agent"
	"agentcore/model"
	"agentcore/provider/testutil"
	"agentcore/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, store agent.Store, providers agent.ProviderFunc, opts ...Option) *Manager {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	if providers == nil {
		mock := testutil.NewMockProvider()
		providers = func(model.AgentDefinition) (model.Provider, error) { return mock, nil }
	}
	return New(agent.Deps{Providers: providers, Store: store, Version: 1}, opts...)
}

func TestCreatePublishesAndPersists(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestManager(t, store, nil)

	a, err := m.Create(ctx, "agent@helper", model.AgentDefinition{Name: "Helper", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, a.Definition().Meta.Status)

	again, err := m.Create(ctx, "agent@helper", model.AgentDefinition{Name: "Other"})
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, "Helper", again.Definition().Name)

	st, ok, err := store.Get(ctx, "agent@helper")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Helper", st.Definition.Name)

	fresh := newTestManager(t, store, nil)
	loaded, err := fresh.Get(ctx, "agent@helper")
	require.NoError(t, err)
	assert.Equal(t, "Helper", loaded.Definition().Name)
}

func TestGetUnknownAgent(t *testing.T) {
	m := newTestManager(t, nil, nil)
	_, err := m.Get(context.Background(), "agent@nobody")
	assert.ErrorIs(t, err, model.ErrAgentNotFound)
}

func TestLookupSkipsTrashedAgents(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, nil)
	a, err := m.Create(ctx, "agent@helper", model.AgentDefinition{Name: "Helper"})
	require.NoError(t, err)

	got, err := m.Lookup(ctx, "agent@helper")
	require.NoError(t, err)
	assert.Same(t, a, got)

	require.NoError(t, a.Trash(ctx))
	_, err = m.Lookup(ctx, "agent@helper")
	assert.ErrorIs(t, err, model.ErrAgentNotFound)

	// Trashed records stay reachable through Get.
	got, err = m.Get(ctx, "agent@helper")
	require.NoError(t, err)
	assert.True(t, got.Definition().Trashed())
}

func TestGetUpgradesOlderBuiltinRecords(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	old := model.AgentState{
		Version: 1,
		Definition: model.AgentDefinition{
			ID:    SearchID,
			Name:  "Old search",
			Model: "old-model",
			Meta:  model.Meta{Status: model.StatusPublished},
		},
		Messages: map[string][]model.Message{"c1": {{Role: model.RoleUser, Content: "hi"}}},
	}
	require.NoError(t, store.Put(ctx, old))

	mock := testutil.NewMockProvider()
	m := New(agent.Deps{
		Providers: func(model.AgentDefinition) (model.Provider, error) { return mock, nil },
		Store:     store,
		Version:   2,
	})
	a, err := m.Get(ctx, SearchID)
	require.NoError(t, err)

	st := a.State()
	assert.Equal(t, 2, st.Version)
	assert.Equal(t, "Search", st.Definition.Name)
	assert.Equal(t, "mistral-small", st.Definition.Model)
	assert.Len(t, st.Messages["c1"], 1, "history survives upgrades")

	stored, _, err := store.Get(ctx, SearchID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
}

func TestUpdateAgentsAppliesProfile(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, nil,
		WithSettings(map[string]model.AgentDefinition{
			"local": {Provider: model.ProviderOllama, Model: "llama3", Host: "http://gpu:11434"},
		}),
		WithProfiles(map[string]map[string]string{
			"home": {OrchestratorID: "local"},
		}, "home"),
	)

	require.NoError(t, m.UpdateAgents(ctx, ""))

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, len(Builtins()))

	orch, err := m.Get(ctx, OrchestratorID)
	require.NoError(t, err)
	def := orch.Definition()
	assert.Equal(t, model.ProviderOllama, def.Provider)
	assert.Equal(t, "llama3", def.Model)
	assert.Equal(t, "http://gpu:11434", def.Host)
	assert.Equal(t, Builtins()[OrchestratorID].Prompt, def.Prompt)
	assert.Equal(t, model.StatusPublished, def.Meta.Status)

	search, err := m.Get(ctx, SearchID)
	require.NoError(t, err)
	assert.Equal(t, "mistral-small", search.Definition().Model)
	assert.Equal(t, "indexer", search.Definition().ToolServiceID)

	// A second run keeps histories.
	require.NoError(t, orch.Set(ctx, "c1", []model.Message{{Role: model.RoleUser, Content: "hello"}}))
	require.NoError(t, m.UpdateAgents(ctx, "home"))
	assert.Len(t, orch.History("c1"), 1)
}

func TestUpdateAgentsErrors(t *testing.T) {
	ctx := context.Background()

	m := newTestManager(t, nil, nil)
	assert.ErrorContains(t, m.UpdateAgents(ctx, "missing"), "unknown profile")

	m = newTestManager(t, nil, nil,
		WithProfiles(map[string]map[string]string{"p": {SearchID: "nope"}}, "p"))
	assert.ErrorContains(t, m.UpdateAgents(ctx, ""), "unknown settings nope")
}

func TestApplyDefaultSettings(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, nil,
		WithSettings(map[string]model.AgentDefinition{
			"fast": {Model: "qwen3:4b", Headers: map[string]string{"X-Key": "k"}},
		}),
		WithDefaultSettings("fast"),
	)
	a, err := m.Create(ctx, "agent@helper", model.AgentDefinition{Name: "Helper", Prompt: "be brief", Model: "big"})
	require.NoError(t, err)

	require.NoError(t, m.ApplyDefaultSettings(ctx, "agent@helper"))
	def := a.Definition()
	assert.Equal(t, "qwen3:4b", def.Model)
	assert.Equal(t, "k", def.Headers["X-Key"])
	assert.Equal(t, "be brief", def.Prompt)
	assert.Equal(t, "Helper", def.Name)

	m = newTestManager(t, nil, nil)
	assert.Error(t, m.ApplyDefaultSettings(ctx, "agent@helper"))
}

func TestDelegationResolvesThroughManager(t *testing.T) {
	ctx := context.Background()
	helperProvider := testutil.NewScriptedProvider(testutil.Reply("42"))
	leadProvider := testutil.NewScriptedProvider(
		testutil.ToolCallReply(model.ToolCall{
			ID:        "call-1",
			Name:      agent.AskAgentTool,
			Arguments: map[string]any{"agent": "agent@helper", "prompt": "compute"},
		}),
		testutil.Reply("the answer is 42"),
	)
	m := newTestManager(t, nil, func(def model.AgentDefinition) (model.Provider, error) {
		if def.ID == "agent@helper" {
			return helperProvider, nil
		}
		return leadProvider, nil
	})

	_, err := m.Create(ctx, "agent@helper", model.AgentDefinition{Name: "Helper"})
	require.NoError(t, err)
	lead, err := m.Create(ctx, "agent@lead", model.AgentDefinition{Name: "Lead", Delegation: []string{"agent@helper"}})
	require.NoError(t, err)

	reply, err := lead.Chat(ctx, "c1", "what is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "the answer is 42", reply.Content)

	tools := lead.ToolHistory("c1")
	require.Len(t, tools, 1)
	assert.Equal(t, "42", tools[0].Content)
}
