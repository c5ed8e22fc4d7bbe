package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"agentcore/agent"
	"agentcore/model"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"golang.org/x/sync/errgroup"
)

// AgentSpec describes one agent of a mission team.
type AgentSpec struct {
	Name       string   `json:"name" jsonschema:"description=Short unique name of the agent"`
	Role       string   `json:"role"`
	Expertise  string   `json:"expertise"`
	Context    string   `json:"context" jsonschema:"description=The situation the agent works in"`
	Objectives []string `json:"objectives"`
	Delegation []string `json:"delegation,omitempty" jsonschema:"description=Names of the agents it may ask for help"`
	Provider   string   `json:"provider,omitempty" jsonschema:"enum=ollama,enum=open-ai"`
	Model      string   `json:"model,omitempty"`
}

// AgentPlan is the team proposed for a mission.
type AgentPlan struct {
	Agents []AgentSpec `json:"agents"`
}

// Task is one unit of work of a mission. Agent is the name of the agent
// performing it and Dependencies the ids of the tasks it needs.
type Task struct {
	ID           string   `json:"id"`
	Agent        string   `json:"agent"`
	Task         string   `json:"task"`
	Dependencies []string `json:"dependencies"`
}

// TaskPlan is the ordered work of a mission.
type TaskPlan struct {
	Tasks []Task `json:"tasks"`
}

// TaskResult is the outcome of one task.
type TaskResult struct {
	ID         string    `json:"id"`
	Agent      string    `json:"agent"`
	Output     string    `json:"output"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Report summarizes a mission run.
type Report struct {
	RunID      string       `json:"runId"`
	Mission    string       `json:"mission"`
	Agents     []string     `json:"agents"`
	Tasks      []TaskResult `json:"tasks"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
}

var (
	agentSpecFormat = schemaOf[AgentSpec]()
	agentPlanFormat = schemaOf[AgentPlan]()
	taskPlanFormat  = schemaOf[TaskPlan]()
)

// schemaOf reflects the JSON schema used as structured-output format.
func schemaOf[T any]() json.RawMessage {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(new(T))
	schema.Version = ""
	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("failed to reflect schema: %v", err))
	}
	return data
}

// Orchestrate runs a mission: the orchestrator proposes a team and a task
// plan, the team agents are created, and the tasks run in dependency layers.
// Tasks of one layer run concurrently, except that the tasks of a single
// agent always run one after the other. Each task prompt carries the outputs
// of its dependencies.
func (m *Manager) Orchestrate(ctx context.Context, mission string) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Mission: mission, StartedAt: time.Now()}
	logger := m.logger.With("run", report.RunID)

	orchestrator, err := m.Builtin(ctx, OrchestratorID)
	if err != nil {
		return nil, err
	}

	var team AgentPlan
	if err := plan(ctx, orchestrator, mission, agentPlanFormat, &team); err != nil {
		return nil, fmt.Errorf("failed to plan agents: %w", err)
	}
	if len(team.Agents) == 0 {
		return nil, fmt.Errorf("orchestrator proposed no agents")
	}
	ids, err := m.createTeam(ctx, orchestrator, mission, team)
	if err != nil {
		return nil, err
	}
	for _, spec := range team.Agents {
		report.Agents = append(report.Agents, ids[spec.Name])
	}
	logger.Info("created mission team", "agents", len(ids))

	var work TaskPlan
	if err := plan(ctx, orchestrator, taskPrompt(mission, team), taskPlanFormat, &work); err != nil {
		return nil, fmt.Errorf("failed to plan tasks: %w", err)
	}
	layers, err := layer(work.Tasks, ids)
	if err != nil {
		return nil, err
	}
	logger.Info("planned mission", "tasks", len(work.Tasks), "layers", len(layers))

	results := map[string]TaskResult{}
	var mu sync.Mutex
	contextID := "mission-" + report.RunID
	for i, tasks := range layers {
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(m.concurrency)
		for _, queue := range byAgent(tasks) {
			group.Go(func() error {
				a, err := m.Lookup(groupCtx, ids[queue[0].Agent])
				if err != nil {
					return err
				}
				for _, task := range queue {
					mu.Lock()
					prompt := taskInput(task, results)
					mu.Unlock()

					started := time.Now()
					reply, err := a.Chat(groupCtx, contextID, prompt, agent.WithCaller(OrchestratorID))
					if err != nil {
						return fmt.Errorf("task %s: %w", task.ID, err)
					}
					mu.Lock()
					results[task.ID] = TaskResult{
						ID:         task.ID,
						Agent:      a.ID(),
						Output:     reply.Content,
						StartedAt:  started,
						FinishedAt: time.Now(),
					}
					mu.Unlock()
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			report.Tasks = collect(layers, results)
			report.FinishedAt = time.Now()
			return report, err
		}
		logger.Debug("finished layer", "layer", i, "tasks", len(tasks))
	}

	report.Tasks = collect(layers, results)
	report.FinishedAt = time.Now()
	return report, nil
}

// plan asks a for a structured answer and decodes it into out.
func plan(ctx context.Context, a *agent.Agent, prompt string, format json.RawMessage, out any) error {
	reply, err := a.GenerateWith(ctx, prompt, format)
	if err != nil {
		return err
	}
	data := []byte(reply.Content)
	if reply.Value != nil {
		if data, err = json.Marshal(reply.Value); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return model.E(model.KindMalformedStructuredOutput, "plan", err)
	}
	return nil
}

// createTeam creates or refreshes the agents of a mission and returns their
// ids keyed by name. Agents inherit the connection settings of the
// orchestrator unless the plan names a provider or model.
func (m *Manager) createTeam(ctx context.Context, orchestrator *agent.Agent, mission string, team AgentPlan) (map[string]string, error) {
	ids := map[string]string{}
	names := map[string]string{}
	prefix := "agent@mission-" + slug(mission, 32)
	for _, spec := range team.Agents {
		if spec.Name == "" {
			return nil, fmt.Errorf("agent plan contains an agent without name")
		}
		if _, dup := ids[spec.Name]; dup {
			return nil, fmt.Errorf("agent plan names %s twice", spec.Name)
		}
		id := prefix + "-" + slug(spec.Name, 32)
		if other, dup := names[id]; dup {
			return nil, fmt.Errorf("agent plan names %s and %s map to the same id %s", other, spec.Name, id)
		}
		ids[spec.Name] = id
		names[id] = spec.Name
	}

	for _, spec := range team.Agents {
		def := orchestrator.BaseSettings()
		if spec.Provider != "" {
			def.Provider = spec.Provider
			def.Host = ""
			def.Headers = nil
		}
		if spec.Model != "" {
			def.Model = spec.Model
		}
		def.Name = spec.Name
		def.Role = spec.Role
		def.Prompt = agentPrompt(spec)
		for _, name := range spec.Delegation {
			if id, ok := ids[name]; ok && name != spec.Name {
				def.Delegation = append(def.Delegation, id)
			}
		}

		id := ids[spec.Name]
		a, err := m.Create(ctx, id, def)
		if err != nil {
			return nil, err
		}
		if err := a.Patch(ctx, def); err != nil {
			return nil, fmt.Errorf("failed to configure agent %s: %w", id, err)
		}
		if err := a.Publish(ctx); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func agentPrompt(spec AgentSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, %s.\n", spec.Name, spec.Role)
	if spec.Expertise != "" {
		fmt.Fprintf(&sb, "Expertise: %s\n", spec.Expertise)
	}
	if spec.Context != "" {
		fmt.Fprintf(&sb, "Context: %s\n", spec.Context)
	}
	if len(spec.Objectives) > 0 {
		sb.WriteString("Objectives:\n")
		for _, o := range spec.Objectives {
			fmt.Fprintf(&sb, "- %s\n", o)
		}
	}
	return strings.TrimSpace(sb.String())
}

func taskPrompt(mission string, team AgentPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mission: %s\n\nAgents:\n", mission)
	for _, spec := range team.Agents {
		fmt.Fprintf(&sb, "- %s: %s\n", spec.Name, spec.Role)
	}
	sb.WriteString("\nSplit the mission into tasks. Give every task a unique id, the name of the agent performing it and the ids of the tasks whose results it needs.")
	return sb.String()
}

func taskInput(task Task, results map[string]TaskResult) string {
	if len(task.Dependencies) == 0 {
		return task.Task
	}
	var sb strings.Builder
	sb.WriteString(task.Task)
	sb.WriteString("\n\nResults of previous tasks:")
	for _, dep := range task.Dependencies {
		fmt.Fprintf(&sb, "\n\n[%s]\n%s", dep, results[dep].Output)
	}
	return sb.String()
}

// layer validates the task plan and groups tasks so that every task comes
// after the tasks it depends on.
func layer(tasks []Task, agents map[string]string) ([][]Task, error) {
	byID := map[string]Task{}
	for _, t := range tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("task plan contains a task without id")
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("task plan contains task %s twice", t.ID)
		}
		if _, ok := agents[t.Agent]; !ok {
			return nil, fmt.Errorf("task %s is assigned to unknown agent %q", t.ID, t.Agent)
		}
		byID[t.ID] = t
	}

	pending := map[string]int{}
	dependents := map[string][]string{}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("task %s depends on unknown task %s", t.ID, dep)
			}
			pending[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var layers [][]Task
	var ready []Task
	for _, t := range tasks {
		if pending[t.ID] == 0 {
			ready = append(ready, t)
		}
	}
	done := 0
	for len(ready) > 0 {
		layers = append(layers, ready)
		done += len(ready)
		var next []Task
		for _, t := range ready {
			for _, id := range dependents[t.ID] {
				pending[id]--
				if pending[id] == 0 {
					next = append(next, byID[id])
				}
			}
		}
		ready = next
	}
	if done != len(tasks) {
		var stuck []string
		for _, t := range tasks {
			if pending[t.ID] > 0 {
				stuck = append(stuck, t.ID)
			}
		}
		return nil, fmt.Errorf("task plan has a dependency cycle among %s", strings.Join(stuck, ", "))
	}
	return layers, nil
}

// byAgent splits a layer into per-agent queues, keeping plan order.
func byAgent(tasks []Task) [][]Task {
	var order []string
	queues := map[string][]Task{}
	for _, t := range tasks {
		if _, ok := queues[t.Agent]; !ok {
			order = append(order, t.Agent)
		}
		queues[t.Agent] = append(queues[t.Agent], t)
	}
	out := make([][]Task, 0, len(order))
	for _, name := range order {
		out = append(out, queues[name])
	}
	return out
}

func collect(layers [][]Task, results map[string]TaskResult) []TaskResult {
	var out []TaskResult
	for _, tasks := range layers {
		for _, t := range tasks {
			if r, ok := results[t.ID]; ok {
				out = append(out, r)
			}
		}
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string, n int) string {
	s = strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(s) > n {
		s = strings.TrimRight(s[:n], "-")
	}
	if s == "" {
		return "x"
	}
	return s
}
