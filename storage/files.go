package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"agentcore/model"
)

// FileStore keeps one JSON file per agent under <dataDir>/agents.
type FileStore struct {
	dir string
}

func NewFileStore(dataDir string) (*FileStore, error) {
	dir := filepath.Join(dataDir, "agents")

	// Create the agents directory if it doesn't exist (0700 - user-only access)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create agents directory: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, SanitizeFilename(id)+".json")
}

func (s *FileStore) Put(_ context.Context, st model.AgentState) error {
	if st.Definition.ID == "" {
		return fmt.Errorf("agent record without id")
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode agent %s: %w", st.Definition.ID, err)
	}

	// Write through a temp file so readers never see a partial record
	tmp := s.path(st.Definition.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write agent file: %w", err)
	}
	return os.Rename(tmp, s.path(st.Definition.ID))
}

func (s *FileStore) Get(_ context.Context, id string) (model.AgentState, bool, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return model.AgentState{}, false, nil
	}
	if err != nil {
		return model.AgentState{}, false, fmt.Errorf("failed to read agent file: %w", err)
	}
	st, err := decodeState(data)
	if err != nil {
		return model.AgentState{}, false, err
	}
	return st, true, nil
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		st, err := decodeState(data)
		if err != nil {
			continue
		}
		ids = append(ids, st.Definition.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete agent file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// SanitizeFilename maps an agent id to a safe file name.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	name = replacer.Replace(strings.TrimSpace(name))
	if name == "" {
		name = "agent"
	}
	return name
}
