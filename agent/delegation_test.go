package agent

import (
	"context"
	"testing"

	"agentcore/model"
	"agentcore/provider/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallAgent(t *testing.T) {
	reg := registry{}
	deps := Deps{Registry: reg, Version: 1}

	helperProvider := testutil.NewScriptedProvider(testutil.Reply("42"))
	helperDeps := deps
	helperDeps.Providers = staticProvider(helperProvider)
	helper, err := New("agent@helper", model.AgentDefinition{Prompt: "You answer"}, helperDeps)
	require.NoError(t, err)
	reg[helper.ID()] = helper

	caller := newTestAgent(t, model.AgentDefinition{Delegation: []string{"agent@helper"}}, testutil.NewMockProvider(), deps)

	require.NoError(t, caller.CallAgent(context.Background(), "ctx", "agent@helper", "What is the answer?"))

	history := caller.History("ctx")
	require.Len(t, history, 1)
	assert.Equal(t, model.RoleAssistant, history[0].Role)
	assert.Equal(t, "42", history[0].Content)

	calls := helperProvider.ChatCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "What is the answer?", calls[0].Messages[1].Content)
}

func TestCallAgentNotAvailable(t *testing.T) {
	reg := registry{}
	trashed := newTestAgent(t, model.AgentDefinition{}, testutil.NewMockProvider(), Deps{})
	require.NoError(t, trashed.Trash(context.Background()))
	reg["agent@trashed"] = trashed

	caller := newTestAgent(t, model.AgentDefinition{Delegation: []string{"agent@missing", "agent@trashed"}}, testutil.NewMockProvider(), Deps{Registry: reg})

	tests := []struct {
		name   string
		target string
	}{
		{"unknown", "agent@missing"},
		{"trashed", "agent@trashed"},
		{"outside delegation list", "agent@other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, caller.Reset(context.Background(), "ctx"))
			require.NoError(t, caller.CallAgent(context.Background(), "ctx", tt.target, "hi"))
			history := caller.History("ctx")
			require.Len(t, history, 1)
			assert.Equal(t, "Agent "+tt.target+" not available.", history[0].Content)
		})
	}
}

func TestCallAgentStructuredAnswer(t *testing.T) {
	reg := registry{}
	helper := newTestAgent(t, model.AgentDefinition{}, testutil.NewScriptedProvider(model.ChatResponse{
		Message: model.Message{Content: `{"ok":true}`},
		Value:   map[string]any{"ok": true},
	}), Deps{})
	reg["agent@helper"] = helper
	caller := newTestAgent(t, model.AgentDefinition{Delegation: []string{"agent@helper"}}, testutil.NewMockProvider(), Deps{Registry: reg})

	require.NoError(t, caller.CallAgent(context.Background(), "ctx", "agent@helper", "status"))
	content := caller.History("ctx")[0].Content
	assert.Contains(t, content, "```json")
	assert.Contains(t, content, `"ok": true`)
}

func TestChatAskAgentTool(t *testing.T) {
	reg := registry{}
	helper := newTestAgent(t, model.AgentDefinition{}, testutil.NewScriptedProvider(testutil.Reply("Paris")), Deps{})
	reg["agent@geo"] = helper

	mock := testutil.NewScriptedProvider(
		testutil.ToolCallReply(
			model.ToolCall{ID: "d1", Name: AskAgentTool, Arguments: map[string]any{"agent": "agent@geo", "prompt": "Capital of France?"}},
			model.ToolCall{ID: "d2", Name: AskAgentTool, Arguments: map[string]any{"agent": "agent@nobody", "prompt": "?"}},
		),
		testutil.Reply("The capital is Paris."),
	)
	caller := newTestAgent(t, model.AgentDefinition{Delegation: []string{"agent@geo"}}, mock, Deps{Registry: reg})

	reply, err := caller.Chat(context.Background(), "ctx", "Where?")
	require.NoError(t, err)
	assert.Equal(t, "The capital is Paris.", reply.Content)

	first := mock.ChatCalls()[0]
	require.Len(t, first.Tools, 1)
	assert.Equal(t, AskAgentTool, first.Tools[0].Function.Name)

	tools := caller.ToolHistory("ctx")
	require.Len(t, tools, 2)
	assert.Equal(t, "Paris", tools[0].Content)
	assert.Equal(t, "Agent agent@nobody not available.", tools[1].Content)
}

func pingPongProvider(other string) *testutil.MockProvider {
	mock := testutil.NewMockProvider()
	mock.ChatFunc = func(_ context.Context, req model.ChatRequest, _ model.StreamCallback) (*model.ChatResponse, error) {
		if req.Messages[len(req.Messages)-1].Role == model.RoleTool {
			resp := testutil.Reply("stop")
			return &resp, nil
		}
		resp := testutil.ToolCallReply(model.ToolCall{ID: "to-" + other, Name: AskAgentTool, Arguments: map[string]any{"agent": other, "prompt": "again"}})
		return &resp, nil
	}
	return mock
}

func TestDelegationDepth(t *testing.T) {
	reg := registry{}
	deps := Deps{Registry: reg, Version: 1}

	depsA := deps
	depsA.Providers = staticProvider(pingPongProvider("agent@b"))
	a, err := New("agent@a", model.AgentDefinition{Delegation: []string{"agent@b"}}, depsA)
	require.NoError(t, err)
	depsB := deps
	depsB.Providers = staticProvider(pingPongProvider("agent@a"))
	b, err := New("agent@b", model.AgentDefinition{Delegation: []string{"agent@a"}}, depsB)
	require.NoError(t, err)
	reg[a.ID()] = a
	reg[b.ID()] = b

	reply, err := a.Chat(context.Background(), "ctx", "start")
	require.NoError(t, err)
	assert.Equal(t, "stop", reply.Content)

	// a -> b -> a -> b -> a, whose next delegation is refused.
	deepest := "ctx"
	for _, caller := range []string{"agent@a", "agent@b", "agent@a", "agent@b"} {
		deepest = DelegatedContext(deepest, caller)
	}
	tools := a.ToolHistory(deepest)
	require.Len(t, tools, 1)
	assert.Contains(t, tools[0].Content, string(model.KindDelegationDepth))

	ctx := context.WithValue(context.Background(), depthKey{}, maxDelegationDepth)
	_, err = a.callAgent(ctx, "ctx", "agent@b", "hi")
	assert.ErrorIs(t, err, model.ErrDelegationDepth)
}

func TestDelegatedChatsUseCallerContext(t *testing.T) {
	reg := registry{}
	helperProvider := testutil.NewScriptedProvider(testutil.Reply("Paris"))
	helper := newTestAgent(t, model.AgentDefinition{}, helperProvider, Deps{})
	reg["agent@geo"] = helper
	require.NoError(t, helper.Set(context.Background(), "ctx", []model.Message{{Role: model.RoleUser, Content: "own work"}}))

	caller, err := New("agent@caller", model.AgentDefinition{Delegation: []string{"agent@geo"}}, Deps{
		Providers: staticProvider(testutil.NewMockProvider()),
		Registry:  reg,
		Version:   1,
	})
	require.NoError(t, err)
	require.NoError(t, caller.CallAgent(context.Background(), "ctx", "agent@geo", "Capital of France?"))

	assert.Len(t, helper.History("ctx"), 1, "the target's own context is untouched")
	delegated := helper.History("ctx/agent@caller")
	require.Len(t, delegated, 2)
	assert.Equal(t, "Capital of France?", delegated[0].Content)
	assert.Equal(t, "Paris", delegated[1].Content)
}

func TestSelfDelegationRefused(t *testing.T) {
	reg := registry{}
	mock := testutil.NewMockProvider()
	self := newTestAgent(t, model.AgentDefinition{Delegation: []string{"agent@test"}}, mock, Deps{Registry: reg})
	reg["agent@test"] = self

	require.NoError(t, self.CallAgent(context.Background(), "ctx", "agent@test", "hi"))
	history := self.History("ctx")
	require.Len(t, history, 1)
	assert.Equal(t, "Agent agent@test not available.", history[0].Content)
	assert.Empty(t, mock.ChatCalls())

	assert.Empty(t, self.tools(self.Definition()), "no ask_agent tool when only self is listed")
}
