// Package manager owns the agents of a process: it builds them from stored
// records or built-in definitions, applies settings profiles and resolves
// delegation targets.
package manager

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"agentcore/agent"
	"agentcore/model"

	"dario.cat/mergo"
	"github.com/charmbracelet/log"
)

// DefaultConcurrency bounds the agents running at once during a mission.
const DefaultConcurrency = 4

// Manager is the arena of live agents. It implements agent.Registry.
type Manager struct {
	mu     sync.Mutex
	agents map[string]*agent.Agent
	deps   agent.Deps
	logger *log.Logger

	builtins        map[string]model.AgentDefinition
	settings        map[string]model.AgentDefinition
	profiles        map[string]map[string]string
	defaultProfile  string
	defaultSettings string
	concurrency     int
}

var _ agent.Registry = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithSettings registers named agent settings.
func WithSettings(settings map[string]model.AgentDefinition) Option {
	return func(m *Manager) { maps.Copy(m.settings, settings) }
}

// WithProfiles registers profiles. A profile maps agent ids to settings
// names. def names the profile used when UpdateAgents gets "".
func WithProfiles(profiles map[string]map[string]string, def string) Option {
	return func(m *Manager) {
		maps.Copy(m.profiles, profiles)
		m.defaultProfile = def
	}
}

// WithDefaultSettings names the settings applied by ApplyDefaultSettings.
func WithDefaultSettings(name string) Option {
	return func(m *Manager) { m.defaultSettings = name }
}

// WithBuiltins replaces the built-in definitions.
func WithBuiltins(builtins map[string]model.AgentDefinition) Option {
	return func(m *Manager) { m.builtins = builtins }
}

// WithConcurrency bounds the agents running at once during a mission.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// New creates a manager. deps.Registry is replaced by the manager itself so
// that agents delegate within the arena.
func New(deps agent.Deps, opts ...Option) *Manager {
	if deps.Locks == nil {
		deps.Locks = agent.NewKeyedMutex()
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	m := &Manager{
		agents:      map[string]*agent.Agent{},
		logger:      deps.Logger.WithPrefix("manager"),
		builtins:    Builtins(),
		settings:    map[string]model.AgentDefinition{},
		profiles:    map[string]map[string]string{},
		concurrency: DefaultConcurrency,
	}
	deps.Registry = m
	m.deps = deps
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lookup returns a live agent. Trashed agents are reported as not found.
func (m *Manager) Lookup(ctx context.Context, id string) (*agent.Agent, error) {
	a, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Definition().Trashed() {
		return nil, model.Errorf(model.KindAgentNotFound, "lookup", "%s is trashed", id)
	}
	return a, nil
}

// Get returns the agent with the given id from the arena or the store.
// Records older than the expected version are upgraded on load.
func (m *Manager) Get(ctx context.Context, id string) (*agent.Agent, error) {
	m.mu.Lock()
	a, ok := m.agents[id]
	m.mu.Unlock()
	if ok {
		return a, nil
	}

	a, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, model.Errorf(model.KindAgentNotFound, "get", "%s", id)
	}
	return m.adopt(a), nil
}

func (m *Manager) load(ctx context.Context, id string) (*agent.Agent, error) {
	if m.deps.Store == nil {
		return nil, nil
	}
	state, ok, err := m.deps.Store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	state.Definition.ID = id
	a := agent.FromState(state, m.deps)
	if state.Version < m.deps.Version {
		def := state.Definition
		if builtin, ok := m.builtins[id]; ok {
			def = builtin
		}
		if err := a.Upgrade(ctx, m.deps.Version, def); err != nil {
			return nil, fmt.Errorf("failed to upgrade agent %s: %w", id, err)
		}
	}
	return a, nil
}

// adopt registers a in the arena unless another goroutine got there first.
func (m *Manager) adopt(a *agent.Agent) *agent.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.agents[a.ID()]; ok {
		return existing
	}
	m.agents[a.ID()] = a
	return a
}

// Create returns the agent with the given id, creating and publishing it
// from def when it does not exist yet.
func (m *Manager) Create(ctx context.Context, id string, def model.AgentDefinition) (*agent.Agent, error) {
	a, err := m.Get(ctx, id)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, model.ErrAgentNotFound) {
		return nil, err
	}

	a, err = agent.New(id, def, m.deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent %s: %w", id, err)
	}
	a = m.adopt(a)
	if err := a.Publish(ctx); err != nil {
		return nil, err
	}
	m.logger.Debug("created agent", "id", id)
	return a, nil
}

// List returns the ids of the agents in the arena and in the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	m.mu.Lock()
	for id := range m.agents {
		seen[id] = struct{}{}
	}
	m.mu.Unlock()
	if m.deps.Store != nil {
		ids, err := m.deps.Store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list agents: %w", err)
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// Builtin returns the built-in agent with the given id, creating it when
// missing.
func (m *Manager) Builtin(ctx context.Context, id string) (*agent.Agent, error) {
	def, ok := m.builtins[id]
	if !ok {
		return nil, model.Errorf(model.KindAgentNotFound, "builtin", "%s", id)
	}
	return m.Create(ctx, id, def)
}

// UpdateAgents brings every built-in agent in line with its definition. When
// the profile assigns settings to an agent, those settings override the
// built-in values. An empty profile name selects the default profile.
func (m *Manager) UpdateAgents(ctx context.Context, profile string) error {
	if profile == "" {
		profile = m.defaultProfile
	}
	rules := m.profiles[profile]
	if profile != "" && rules == nil {
		return fmt.Errorf("unknown profile: %s", profile)
	}

	for _, id := range slices.Sorted(maps.Keys(m.builtins)) {
		def := m.builtins[id]
		if name, ok := rules[id]; ok {
			settings, ok := m.settings[name]
			if !ok {
				return fmt.Errorf("profile %s references unknown settings %s", profile, name)
			}
			if err := overlay(&def, settings); err != nil {
				return fmt.Errorf("failed to apply settings %s to %s: %w", name, id, err)
			}
		}

		a, err := m.Create(ctx, id, def)
		if err != nil {
			return err
		}
		if err := a.Patch(ctx, def); err != nil {
			return fmt.Errorf("failed to update agent %s: %w", id, err)
		}
		m.logger.Info("updated agent", "id", id, "provider", def.Provider, "model", def.Model)
	}
	return nil
}

// ApplyDefaultSettings overrides the definition of an agent with the
// default settings.
func (m *Manager) ApplyDefaultSettings(ctx context.Context, id string) error {
	settings, ok := m.settings[m.defaultSettings]
	if !ok {
		return fmt.Errorf("unknown default settings: %q", m.defaultSettings)
	}
	a, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	def := a.Definition()
	if err := overlay(&def, settings); err != nil {
		return fmt.Errorf("failed to apply default settings to %s: %w", id, err)
	}
	return a.Patch(ctx, def)
}

func overlay(def *model.AgentDefinition, settings model.AgentDefinition) error {
	settings.ID = ""
	settings.Meta = model.Meta{}
	return mergo.Merge(def, settings, mergo.WithOverride)
}
