// Package agent runs conversational agents: per-context chat history, the
// tool-calling loop, delegation to other agents, streaming answers and
// embeddings.
//
// An Agent is a single logical thread of control. Its mutex only protects
// the state maps; concurrent Chat calls against the same context are not
// ordered by the agent and must be serialized by the caller.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"agentcore/embedding"
	"agentcore/model"
	"agentcore/vector"

	"dario.cat/mergo"
	"github.com/charmbracelet/log"
)

// DefaultMaxToolTurns bounds the tool rounds of one chat turn.
const DefaultMaxToolTurns = 8

// ProviderFunc resolves the backend of an agent definition.
type ProviderFunc func(def model.AgentDefinition) (model.Provider, error)

// Store is the durable record of agents.
type Store interface {
	Get(ctx context.Context, id string) (model.AgentState, bool, error)
	Put(ctx context.Context, state model.AgentState) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// Registry resolves delegation targets. Lookup fails with
// model.ErrAgentNotFound when the identity does not exist or is trashed.
type Registry interface {
	Lookup(ctx context.Context, id string) (*Agent, error)
}

// ToolCommand is a tool call routed to the external command bus.
type ToolCommand struct {
	// Command is "<namespace>.<tool>".
	Command string
	Payload map[string]any
}

// ToolBus executes tool commands.
type ToolBus interface {
	Dispatch(ctx context.Context, cmd ToolCommand) (any, error)
}

// Deps are the collaborators shared by the agents of one manager.
type Deps struct {
	Providers ProviderFunc
	Store     Store
	Tools     ToolBus
	Registry  Registry
	// Locks serializes batch embedding runs per agent identity.
	Locks *KeyedMutex
	// Embedding configures the batch size and prefix of EmbedItems.
	Embedding    embedding.Pipeline
	MaxToolTurns int
	// Version is the expected record version. Records persisted with another
	// version are restored from the store instead of being overwritten.
	Version int
	Logger  *log.Logger
}

// Agent is one logical agent identity and its chat contexts.
type Agent struct {
	id     string
	deps   Deps
	logger *log.Logger

	mu    sync.Mutex
	state model.AgentState
}

// New creates an agent from a definition. Unset fields fall back to
// model.DefaultDefinition.
func New(id string, def model.AgentDefinition, deps Deps) (*Agent, error) {
	a := newAgent(id, deps)
	a.state.Version = deps.Version
	patched, err := a.withDefaults(def, model.Meta{Status: model.StatusCreated})
	if err != nil {
		return nil, err
	}
	a.state.Definition = patched
	return a, nil
}

// FromState rebuilds an agent from a stored record.
func FromState(state model.AgentState, deps Deps) *Agent {
	a := newAgent(state.Definition.ID, deps)
	a.state = state.Clone()
	return a
}

func newAgent(id string, deps Deps) *Agent {
	if deps.Locks == nil {
		deps.Locks = NewKeyedMutex()
	}
	if deps.MaxToolTurns <= 0 {
		deps.MaxToolTurns = DefaultMaxToolTurns
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Agent{
		id:     id,
		deps:   deps,
		logger: logger.With("agent", id),
		state:  model.AgentState{Messages: map[string][]model.Message{}},
	}
}

func (a *Agent) ID() string { return a.id }

// Definition returns a copy of the agent definition.
func (a *Agent) Definition() model.AgentDefinition {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone().Definition
}

// State returns a copy of the full record.
func (a *Agent) State() model.AgentState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// History returns a copy of a context's messages.
func (a *Agent) History(contextID string) []model.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.Message(nil), a.state.Messages[contextID]...)
}

// UserHistory returns the messages of a context without tool traffic:
// tool replies and assistant messages requesting tools are left out.
func (a *Agent) UserHistory(contextID string) []model.Message {
	var out []model.Message
	for _, m := range a.History(contextID) {
		if m.Role != model.RoleTool && len(m.ToolCalls) == 0 {
			out = append(out, m)
		}
	}
	return out
}

// ToolHistory returns the tool replies of a context.
func (a *Agent) ToolHistory(contextID string) []model.Message {
	var out []model.Message
	for _, m := range a.History(contextID) {
		if m.Role == model.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

// Contexts lists the context ids holding history.
func (a *Agent) Contexts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.state.Messages))
	for id := range a.state.Messages {
		ids = append(ids, id)
	}
	return ids
}

// BaseSettings returns the connection part of the definition.
func (a *Agent) BaseSettings() model.AgentDefinition {
	def := a.Definition()
	return model.AgentDefinition{
		Provider: def.Provider,
		Host:     def.Host,
		Headers:  def.Headers,
		Model:    def.Model,
	}
}

func (a *Agent) appendMessages(contextID string, msgs ...model.Message) {
	now := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range msgs {
		if msgs[i].Timestamp.IsZero() {
			msgs[i].Timestamp = now
		}
	}
	a.state.Messages[contextID] = append(a.state.Messages[contextID], msgs...)
}

// Set replaces the history of a context.
func (a *Agent) Set(ctx context.Context, contextID string, messages []model.Message) error {
	a.mu.Lock()
	a.state.Messages[contextID] = append([]model.Message(nil), messages...)
	a.mu.Unlock()
	return a.persist(ctx)
}

// Reset clears the history of one context, or of every context when
// contextID is empty. Resetting an empty context is a no-op.
func (a *Agent) Reset(ctx context.Context, contextID string) error {
	a.mu.Lock()
	if contextID == "" {
		for id := range a.state.Messages {
			a.state.Messages[id] = []model.Message{}
		}
	} else {
		a.state.Messages[contextID] = []model.Message{}
	}
	a.mu.Unlock()
	return a.persist(ctx)
}

// Patch replaces the definition as a whole. Fields left unset in def fall
// back to their defaults, not to their current values.
func (a *Agent) Patch(ctx context.Context, def model.AgentDefinition) error {
	current := a.Definition()
	patched, err := a.withDefaults(def, current.Meta)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.state.Definition = patched
	a.mu.Unlock()
	return a.persist(ctx)
}

// Upgrade patches the definition and moves the record to version. Records
// already at or past version are left untouched.
func (a *Agent) Upgrade(ctx context.Context, version int, def model.AgentDefinition) error {
	a.mu.Lock()
	current := a.state.Version
	a.mu.Unlock()
	if current >= version {
		return nil
	}

	patched, err := a.withDefaults(def, a.Definition().Meta)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.state.Definition = patched
	a.state.Version = version
	a.mu.Unlock()
	a.logger.Info("upgraded agent record", "from", current, "to", version)
	return a.persist(ctx)
}

// Sync applies a record edited elsewhere. The edit is kept when it carries
// the expected version; otherwise the last persisted record is restored, or
// the current one when nothing was persisted yet.
func (a *Agent) Sync(ctx context.Context, incoming model.AgentState) error {
	incoming = incoming.Clone()
	incoming.Definition.ID = a.id
	if incoming.Version != a.deps.Version {
		a.logger.Warn("rejected edit with unexpected version", "version", incoming.Version, "expected", a.deps.Version)
		return a.restore(ctx)
	}
	a.mu.Lock()
	a.state = incoming
	a.mu.Unlock()
	return a.persist(ctx)
}

func (a *Agent) withDefaults(def model.AgentDefinition, meta model.Meta) (model.AgentDefinition, error) {
	patched := def
	patched.ID = a.id
	patched.Meta = meta
	if err := mergo.Merge(&patched, model.DefaultDefinition()); err != nil {
		return model.AgentDefinition{}, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if !patched.VectorQuality.Valid() {
		return model.AgentDefinition{}, fmt.Errorf("invalid vector quality: %s", patched.VectorQuality)
	}
	return patched, nil
}

// Change sets a single field from its textual value. Supported paths are the
// scalar definition fields, "format", "options.<name>" and "headers.<name>".
func (a *Agent) Change(ctx context.Context, path, value string) error {
	def := a.Definition()

	switch {
	case strings.HasPrefix(path, "options."):
		opts, err := def.Options.With(strings.TrimPrefix(path, "options."), value)
		if err != nil {
			return err
		}
		def.Options = opts
	case strings.HasPrefix(path, "headers."):
		if def.Headers == nil {
			def.Headers = map[string]string{}
		}
		name := strings.TrimPrefix(path, "headers.")
		if value == "" {
			delete(def.Headers, name)
		} else {
			def.Headers[name] = value
		}
	default:
		if err := setField(&def, path, value); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.state.Definition = def
	a.mu.Unlock()
	return a.persist(ctx)
}

func setField(def *model.AgentDefinition, path, value string) error {
	switch path {
	case "name":
		def.Name = value
	case "role":
		def.Role = value
	case "prompt":
		def.Prompt = value
	case "provider":
		def.Provider = value
	case "model":
		def.Model = value
	case "host":
		def.Host = value
	case "toolServiceId":
		def.ToolServiceID = value
	case "usability":
		def.Usability = value
	case "vectorQuality":
		p := vector.Precision(value)
		if !p.Valid() {
			return fmt.Errorf("invalid vector quality: %s", value)
		}
		def.VectorQuality = p
	case "reasoning":
		on := value == "true"
		def.Reasoning = &on
	case "format":
		if value == "" {
			def.Format = nil
			return nil
		}
		if !json.Valid([]byte(value)) {
			return fmt.Errorf("format is not valid JSON")
		}
		def.Format = json.RawMessage(value)
	default:
		return fmt.Errorf("unknown field: %s", path)
	}
	return nil
}

// Publish marks the agent as published.
func (a *Agent) Publish(ctx context.Context) error {
	return a.setStatus(ctx, model.StatusPublished)
}

// Trash soft-deletes the agent. Its history is kept.
func (a *Agent) Trash(ctx context.Context) error {
	return a.setStatus(ctx, model.StatusTrashed)
}

func (a *Agent) setStatus(ctx context.Context, status model.Status) error {
	a.mu.Lock()
	a.state.Definition.Meta.Status = status
	a.mu.Unlock()
	return a.persist(ctx)
}

// Save persists the current record.
func (a *Agent) Save(ctx context.Context) error {
	return a.persist(ctx)
}

// persist writes the record to the store. A record whose version differs
// from the expected one is not written: the last persisted record replaces
// the in-memory state instead.
func (a *Agent) persist(ctx context.Context) error {
	store := a.deps.Store
	if store == nil {
		return nil
	}

	a.mu.Lock()
	version := a.state.Version
	a.mu.Unlock()
	if version != a.deps.Version {
		a.logger.Warn("record version mismatch, restoring persisted record", "version", version, "expected", a.deps.Version)
		return a.restore(ctx)
	}

	a.mu.Lock()
	a.state.Definition.Meta.UpdatedAt = time.Now()
	snapshot := a.state.Clone()
	a.mu.Unlock()

	if err := store.Put(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist agent %s: %w", a.id, err)
	}
	return nil
}

// restore reloads the last persisted record. Without a store or a persisted
// record the in-memory state is kept.
func (a *Agent) restore(ctx context.Context) error {
	if a.deps.Store == nil {
		return nil
	}
	prev, ok, err := a.deps.Store.Get(ctx, a.id)
	if err != nil {
		return fmt.Errorf("failed to load persisted record: %w", err)
	}
	if !ok {
		return nil
	}
	a.mu.Lock()
	a.state = prev.Clone()
	a.mu.Unlock()
	return nil
}
