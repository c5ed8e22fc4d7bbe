package provider

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"agentcore/model"
)

// New creates a provider based on configuration.
//
// Returns an error if the provider type is unknown or the provider-specific
// constructor fails (e.g., invalid URL).
func New(cfg Config) (model.Provider, error) {
	switch cfg.Type {
	case TypeOllama:
		return NewOllamaProvider(cfg)
	case TypeOpenAI:
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// MapProviderIDToType converts a provider selector from an agent definition
// or config file to a Type.
//
// Mappings:
//   - "ollama" → TypeOllama
//   - "open-ai", "openai", "open-router", "openrouter" → TypeOpenAI
//
// For unknown IDs, returns the ID cast as Type (New will error).
func MapProviderIDToType(id string) Type {
	switch strings.ToLower(id) {
	case "ollama":
		return TypeOllama
	case "open-ai", "openai", "open-router", "openrouter":
		return TypeOpenAI
	default:
		return Type(id)
	}
}

// Pool hands out one provider per backend endpoint so that agents sharing a
// server also share its embed concurrency gate.
type Pool struct {
	mu        sync.Mutex
	base      Config
	providers map[string]model.Provider
}

// NewPool creates a pool. Fields of base other than Type, BaseURL and
// Headers (API key, retries, logger...) apply to every provider.
func NewPool(base Config) *Pool {
	return &Pool{base: base, providers: map[string]model.Provider{}}
}

// Get returns the provider for an agent definition.
func (p *Pool) Get(def model.AgentDefinition) (model.Provider, error) {
	cfg := p.base
	cfg.Type = MapProviderIDToType(def.Provider)
	if def.Host != "" {
		cfg.BaseURL = def.Host
	}
	if len(def.Headers) > 0 {
		cfg.Headers = def.Headers
	}

	key := poolKey(cfg)
	p.mu.Lock()
	defer p.mu.Unlock()
	if prov, ok := p.providers[key]; ok {
		return prov, nil
	}
	prov, err := New(cfg)
	if err != nil {
		return nil, err
	}
	p.providers[key] = prov
	return prov, nil
}

func poolKey(cfg Config) string {
	var sb strings.Builder
	sb.WriteString(string(cfg.Type))
	sb.WriteString("|")
	sb.WriteString(cfg.BaseURL)
	for _, k := range slices.Sorted(maps.Keys(cfg.Headers)) {
		sb.WriteString("|" + k + "=" + cfg.Headers[k])
	}
	return sb.String()
}
