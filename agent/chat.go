package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"agentcore/model"
)

// AskAgentTool is the built-in tool through which a model delegates a
// question to another agent.
const AskAgentTool = "ask_agent"

// maxDelegationDepth bounds nested agent-to-agent calls.
const maxDelegationDepth = 4

type depthKey struct{}

func delegationDepth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// Reply is the final answer of a chat turn. Value holds the parsed object
// when the agent declares a structured output format.
type Reply struct {
	Content string
	Value   any
}

// Result returns the structured value when present, the text otherwise.
func (r Reply) Result() any {
	if r.Value != nil {
		return r.Value
	}
	return r.Content
}

type chatConfig struct {
	callerID string
	images   []string
	resume   bool
}

// ChatOption configures a single chat turn.
type ChatOption func(*chatConfig)

// WithCaller sets the caller identity forwarded to tools.
func WithCaller(id string) ChatOption {
	return func(c *chatConfig) { c.callerID = id }
}

// WithImages attaches base64 encoded images to the user message.
func WithImages(images ...string) ChatOption {
	return func(c *chatConfig) { c.images = images }
}

// Resume continues the current history without appending a user message.
func Resume() ChatOption {
	return func(c *chatConfig) { c.resume = true }
}

// Chat sends question on contextID and runs the tool loop until the model
// answers without tool calls. Failing tools and missing delegation targets
// are reported to the model as messages; provider errors are returned.
func (a *Agent) Chat(ctx context.Context, contextID, question string, opts ...ChatOption) (Reply, error) {
	cfg := chatConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	def := a.Definition()
	p, err := a.provider(def)
	if err != nil {
		return Reply{}, err
	}

	if !cfg.resume {
		a.appendMessages(contextID, model.Message{
			Role:    model.RoleUser,
			Content: question,
			Images:  cfg.images,
		})
	}

	tools := a.tools(def)
	for turn := 0; ; turn++ {
		resp, err := p.Chat(ctx, model.ChatRequest{
			Model:    def.Model,
			Messages: a.request(def, contextID),
			Options:  def.Options,
			Format:   def.Format,
			Tools:    tools,
			Think:    def.Reasoning,
		}, nil)
		if err != nil {
			return Reply{}, err
		}
		if resp.Thinking != "" {
			a.logger.Debug("thinking", "context", contextID, "text", resp.Thinking)
		}

		if len(resp.Message.ToolCalls) == 0 {
			reply := a.finish(contextID, resp.Message.Content, resp.Value)
			if err := a.persist(ctx); err != nil {
				return reply, err
			}
			return reply, nil
		}

		if turn == a.deps.MaxToolTurns {
			if err := a.persist(ctx); err != nil {
				a.logger.Error("failed to persist history", "err", err)
			}
			return Reply{}, model.Errorf(model.KindMaxToolTurns, "agent.chat", "no answer after %d tool rounds", turn)
		}

		a.appendMessages(contextID, model.Message{
			Role:      model.RoleAssistant,
			ToolCalls: resp.Message.ToolCalls,
		})
		for _, call := range resp.Message.ToolCalls {
			if call.Name == AskAgentTool {
				a.delegate(ctx, contextID, call)
				continue
			}
			a.appendMessages(contextID, a.runTool(ctx, def, contextID, cfg.callerID, call))
		}
	}
}

// finish stores the final assistant answer with its reasoning removed.
func (a *Agent) finish(contextID, content string, value any) Reply {
	thoughts, text := splitThinking(content)
	for _, t := range thoughts {
		a.logger.Debug("thinking", "context", contextID, "text", t)
	}
	a.appendMessages(contextID, model.Message{Role: model.RoleAssistant, Content: text})
	return Reply{Content: text, Value: value}
}

// request builds the message list sent to the model: the system prompt
// followed by the context history.
func (a *Agent) request(def model.AgentDefinition, contextID string) []model.Message {
	history := a.History(contextID)
	msgs := make([]model.Message, 0, len(history)+1)
	msgs = append(msgs, model.Message{Role: model.RoleSystem, Content: def.Prompt})
	return append(msgs, history...)
}

func (a *Agent) provider(def model.AgentDefinition) (model.Provider, error) {
	if a.deps.Providers == nil {
		return nil, model.Errorf(model.KindProviderUnavailable, "agent", "no provider configured")
	}
	return a.deps.Providers(def)
}

// tools returns the declared tools plus ask_agent when the agent may
// delegate.
func (a *Agent) tools(def model.AgentDefinition) []model.ToolDeclaration {
	tools := append([]model.ToolDeclaration(nil), def.Tools...)
	if len(def.Delegation) == 0 || a.deps.Registry == nil {
		return tools
	}
	var agents []any
	for _, id := range def.Delegation {
		if id != a.id {
			agents = append(agents, id)
		}
	}
	if len(agents) == 0 {
		return tools
	}
	return append(tools, model.NewToolDeclaration(AskAgentTool,
		"Ask another agent for help and get its answer.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agent": map[string]any{
					"type":        "string",
					"description": "Identifier of the agent to ask",
					"enum":        agents,
				},
				"prompt": map[string]any{
					"type":        "string",
					"description": "Question or instruction for the agent",
				},
			},
			"required": []string{"agent", "prompt"},
		},
	))
}

// runTool dispatches one call to the tool bus and returns the tool message
// answering it. Failures become the message content.
func (a *Agent) runTool(ctx context.Context, def model.AgentDefinition, contextID, callerID string, call model.ToolCall) model.Message {
	msg := model.Message{Role: model.RoleTool, ToolCallID: call.ID, Name: call.Name}

	result, err := a.dispatch(ctx, def, contextID, callerID, call)
	if err != nil {
		a.logger.Warn("tool call failed", "tool", call.Name, "err", err)
		msg.Content = "error: " + err.Error()
		return msg
	}
	msg.Content = toolContent(result)
	return msg
}

func (a *Agent) dispatch(ctx context.Context, def model.AgentDefinition, contextID, callerID string, call model.ToolCall) (any, error) {
	if a.deps.Tools == nil {
		return nil, model.Errorf(model.KindToolDispatchFailed, call.Name, "no tool bus configured")
	}
	if def.ToolServiceID == "" {
		return nil, model.Errorf(model.KindToolDispatchFailed, call.Name, "agent has no tool service")
	}
	args, err := call.Args()
	if err != nil {
		return nil, model.E(model.KindToolDispatchFailed, call.Name, err)
	}

	namespace, _, _ := strings.Cut(def.ToolServiceID, "@")
	payload := make(map[string]any, len(args)+3)
	for k, v := range args {
		payload[k] = v
	}
	payload["id"] = def.ToolServiceID
	payload["callerId"] = callerID
	payload["contextId"] = contextID

	a.logger.Debug("dispatching tool", "command", namespace+"."+call.Name)
	result, err := a.deps.Tools.Dispatch(ctx, ToolCommand{
		Command: namespace + "." + call.Name,
		Payload: payload,
	})
	if err != nil {
		return nil, model.E(model.KindToolDispatchFailed, call.Name, err)
	}
	return result, nil
}

func toolContent(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(b)
}

// delegate answers an ask_agent call. The delegated answer is appended as an
// assistant message, and a tool message closes the call.
func (a *Agent) delegate(ctx context.Context, contextID string, call model.ToolCall) {
	msg := model.Message{Role: model.RoleTool, ToolCallID: call.ID, Name: call.Name}
	args, err := call.Args()
	if err != nil {
		msg.Content = "error: " + err.Error()
		a.appendMessages(contextID, msg)
		return
	}
	target, _ := args["agent"].(string)
	prompt, _ := args["prompt"].(string)

	reply, err := a.callAgent(ctx, contextID, target, prompt)
	switch {
	case errors.Is(err, model.ErrAgentNotFound):
		msg.Content = fmt.Sprintf("Agent %s not available.", target)
	case err != nil:
		msg.Content = "error: " + err.Error()
	default:
		msg.Content = toolContent(reply.Result())
	}
	a.appendMessages(contextID, msg)
}

// CallAgent asks targetID to answer prompt on contextID. The answer is
// appended to this agent's history as an assistant message. When the target
// is not in the delegation list or does not exist, "Agent <id> not
// available." is recorded instead and no error is returned.
func (a *Agent) CallAgent(ctx context.Context, contextID, targetID, prompt string) error {
	reply, err := a.callAgent(ctx, contextID, targetID, prompt)
	if errors.Is(err, model.ErrAgentNotFound) {
		a.appendMessages(contextID, model.Message{
			Role:    model.RoleAssistant,
			Content: fmt.Sprintf("Agent %s not available.", targetID),
		})
		return a.persist(ctx)
	}
	if err != nil {
		return err
	}

	content := reply.Content
	if reply.Value != nil {
		b, err := json.MarshalIndent(reply.Value, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode answer of %s: %w", targetID, err)
		}
		content = "```json\n" + string(b) + "\n```"
	}
	a.appendMessages(contextID, model.Message{Role: model.RoleAssistant, Content: content})
	return a.persist(ctx)
}

func (a *Agent) callAgent(ctx context.Context, contextID, targetID, prompt string) (Reply, error) {
	def := a.Definition()
	if a.deps.Registry == nil || targetID == a.id || !allowed(def.Delegation, targetID) {
		a.logger.Warn("delegation target not available", "target", targetID)
		return Reply{}, model.Errorf(model.KindAgentNotFound, "agent.delegate", "%s", targetID)
	}
	depth := delegationDepth(ctx)
	if depth >= maxDelegationDepth {
		return Reply{}, model.Errorf(model.KindDelegationDepth, "agent.delegate", "depth %d reached", maxDelegationDepth)
	}

	target, err := a.deps.Registry.Lookup(ctx, targetID)
	if err != nil {
		a.logger.Warn("delegation target not available", "target", targetID, "err", err)
		return Reply{}, err
	}
	ctx = context.WithValue(ctx, depthKey{}, depth+1)
	return target.Chat(ctx, DelegatedContext(contextID, a.id), prompt, WithCaller(a.id))
}

// DelegatedContext is the context a target agent answers delegated prompts
// on. Each caller gets its own thread so that the target's open tool rounds
// on contextID are never interleaved with delegated questions.
func DelegatedContext(contextID, callerID string) string {
	return contextID + "/" + callerID
}

func allowed(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Ask streams the answer to question through sink. The user question and the
// concatenated answer are stored once the stream completes.
func (a *Agent) Ask(ctx context.Context, contextID, question string, sink func(string)) (string, error) {
	def := a.Definition()
	p, err := a.provider(def)
	if err != nil {
		return "", err
	}

	msgs := append(a.request(def, contextID), model.Message{Role: model.RoleUser, Content: question})
	var answer strings.Builder
	_, err = p.Chat(ctx, model.ChatRequest{
		Model:    def.Model,
		Messages: msgs,
		Options:  def.Options,
		Think:    def.Reasoning,
		Stream:   true,
	}, func(chunk string, _ []model.ToolCall) error {
		answer.WriteString(chunk)
		if sink != nil {
			sink(chunk)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	a.appendMessages(contextID, model.Message{Role: model.RoleUser, Content: question})
	reply := a.finish(contextID, answer.String(), nil)
	return reply.Content, a.persist(ctx)
}

// Stream is Ask for fire-and-forget callers: errors are written to sink
// instead of being returned.
func (a *Agent) Stream(ctx context.Context, contextID, question string, sink func(string)) {
	if _, err := a.Ask(ctx, contextID, question, sink); err != nil {
		a.logger.Error("stream failed", "context", contextID, "err", err)
		if sink != nil {
			sink(err.Error())
		}
	}
}

// Generate runs a one-shot completion of prompt under the agent's system
// prompt. History is neither read nor written.
func (a *Agent) Generate(ctx context.Context, prompt string) (Reply, error) {
	def := a.Definition()
	return a.generate(ctx, def, def.Prompt, prompt, def.Format)
}

// GenerateWith is Generate with format replacing the declared output
// format.
func (a *Agent) GenerateWith(ctx context.Context, prompt string, format json.RawMessage) (Reply, error) {
	def := a.Definition()
	return a.generate(ctx, def, def.Prompt, prompt, format)
}

func (a *Agent) generate(ctx context.Context, def model.AgentDefinition, system, prompt string, format json.RawMessage) (Reply, error) {
	p, err := a.provider(def)
	if err != nil {
		return Reply{}, err
	}
	resp, err := p.Generate(ctx, model.GenerateRequest{
		Model:   def.Model,
		System:  system,
		Prompt:  prompt,
		Options: def.Options,
		Format:  format,
		Think:   def.Reasoning,
	})
	if err != nil {
		return Reply{}, err
	}
	if resp.Thinking != "" {
		a.logger.Debug("thinking", "text", resp.Thinking)
	}
	thoughts, text := splitThinking(resp.Text)
	for _, t := range thoughts {
		a.logger.Debug("thinking", "text", t)
	}
	return Reply{Content: text, Value: resp.Value}, nil
}

// ResumeExchange summarizes the conversation of contextID: the transcript is
// sent as the prompt of a completion whose system prompt is resumePrompt.
func (a *Agent) ResumeExchange(ctx context.Context, contextID, resumePrompt string) (string, error) {
	reply, err := a.generate(ctx, a.Definition(), resumePrompt, a.transcript(contextID), nil)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}
