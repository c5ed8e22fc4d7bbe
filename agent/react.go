package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"agentcore/model"
)

// ReactStep is one observe/think/act step produced by React.
type ReactStep struct {
	Observation string `json:"observation"`
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	AgentID     string `json:"agentId,omitempty"`
	Result      string `json:"result,omitempty"`
}

var reactFormat = json.RawMessage(`{
  "type": "object",
  "properties": {
    "observation": {"type": "string"},
    "thought": {"type": "string"},
    "action": {"type": "string"},
    "agentId": {"type": "string"},
    "result": {"type": "string"}
  },
  "required": ["observation", "thought", "action"]
}`)

// React runs one reasoning step over the transcript of contextID and
// question. The observation is appended to the history; when the step names
// an agent, the action is delegated to it.
func (a *Agent) React(ctx context.Context, contextID, reactPrompt, question string) (*ReactStep, error) {
	def := a.Definition()

	prompt := question
	if transcript := a.transcript(contextID); transcript != "" {
		prompt = transcript + "\n" + question
	}
	reply, err := a.generate(ctx, def, reactPrompt, prompt, reactFormat)
	if err != nil {
		return nil, err
	}

	step, err := decodeStep(reply.Value)
	if err != nil {
		return nil, model.E(model.KindMalformedStructuredOutput, "agent.react", err)
	}
	if step == nil || step.Observation == "" {
		a.appendMessages(contextID, model.Message{
			Role:    model.RoleAssistant,
			Content: "Generation stopped. Unable to answer.",
		})
		return nil, a.persist(ctx)
	}

	a.logger.Debug("react step", "thought", step.Thought, "action", step.Action, "target", step.AgentID)
	a.appendMessages(contextID, model.Message{Role: model.RoleAssistant, Content: step.Observation})
	if step.AgentID != "" {
		if err := a.CallAgent(ctx, contextID, step.AgentID, fmt.Sprintf("%s -> %s", step.Observation, step.Action)); err != nil {
			return step, err
		}
		return step, nil
	}
	return step, a.persist(ctx)
}

func decodeStep(value any) (*ReactStep, error) {
	if value == nil {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var step ReactStep
	if err := json.Unmarshal(b, &step); err != nil {
		return nil, err
	}
	return &step, nil
}

func (a *Agent) transcript(contextID string) string {
	var b strings.Builder
	for _, m := range a.UserHistory(contextID) {
		if m.Role == model.RoleSystem {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
