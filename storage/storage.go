// Package storage persists agent records. Every store keeps whole
// model.AgentState values keyed by agent id.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"agentcore/model"
)

// Summary is a lightweight view of a record for listings.
type Summary struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Status       model.Status `json:"status"`
	Version      int          `json:"version"`
	MessageCount int          `json:"message_count"`
}

func summarize(st model.AgentState) Summary {
	n := 0
	for _, msgs := range st.Messages {
		n += len(msgs)
	}
	return Summary{
		ID:           st.Definition.ID,
		Name:         st.Definition.Name,
		Status:       st.Definition.Meta.Status,
		Version:      st.Version,
		MessageCount: n,
	}
}

func encodeState(st model.AgentState) ([]byte, error) {
	if st.Definition.ID == "" {
		return nil, fmt.Errorf("agent record without id")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent %s: %w", st.Definition.ID, err)
	}
	return data, nil
}

func decodeState(data []byte) (model.AgentState, error) {
	var st model.AgentState
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("failed to decode agent record: %w", err)
	}
	if st.Messages == nil {
		st.Messages = map[string][]model.Message{}
	}
	return st, nil
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.AgentState, bool, error) {
	s.mu.RLock()
	data, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return model.AgentState{}, false, nil
	}
	st, err := decodeState(data)
	return st, err == nil, err
}

func (s *MemoryStore) Put(_ context.Context, st model.AgentState) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[st.Definition.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Summaries lists every stored record, sorted by id.
func Summaries(ctx context.Context, store Reader) ([]Summary, error) {
	ids, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		st, ok, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, summarize(st))
		}
	}
	return out, nil
}
