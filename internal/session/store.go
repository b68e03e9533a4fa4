// Package session persists sandbox variables across script runs. Each
// session id owns one JSON record; saves merge into the existing record so
// keys written by earlier runs are never dropped.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// Store is the session persistence contract. Load returns an empty mapping
// when nothing has been recorded for the id; it never fails on missing
// prior state. Save merges the given mapping into the stored record.
type Store interface {
	Load(ctx context.Context, id string) (map[string]any, error)
	Save(ctx context.Context, id string, vars map[string]any) error
}

// Session ids become file names, so they are restricted to a safe alphabet.
var validID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func checkID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}

// FileStore persists one JSON object per session id under a directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore creates a file-backed store rooted at dir. The directory is
// created lazily on first save.
func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileStore{dir: dir, logger: logger}
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load reads the record for id. A missing record is an empty mapping.
func (s *FileStore) Load(_ context.Context, id string) (map[string]any, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	var vars map[string]any
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	if vars == nil {
		vars = map[string]any{}
	}
	return vars, nil
}

// Save merges vars into the stored record for id and persists it. Existing
// keys absent from vars are retained.
func (s *FileStore) Save(_ context.Context, id string, vars map[string]any) error {
	if err := checkID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := map[string]any{}
	if data, err := os.ReadFile(s.path(id)); err == nil {
		if err := json.Unmarshal(data, &merged); err != nil {
			s.logger.Warn("discarding unreadable session record", "session_id", id, "error", err)
			merged = map[string]any{}
		}
	}
	for k, v := range vars {
		merged[k] = v
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", id, err)
	}
	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return fmt.Errorf("failed to write session %s: %w", id, err)
	}

	s.logger.Debug("saved session variables", "session_id", id, "keys", len(vars))
	return nil
}

// MemoryStore is an in-process store used by tests and by servers that run
// without a configured session directory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]map[string]any
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]map[string]any{}}
}

// Load returns a copy of the record for id, or an empty mapping.
func (s *MemoryStore) Load(_ context.Context, id string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]any{}
	for k, v := range s.sessions[id] {
		out[k] = v
	}
	return out, nil
}

// Save merges vars into the record for id.
func (s *MemoryStore) Save(_ context.Context, id string, vars map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.sessions[id]
	if record == nil {
		record = map[string]any{}
		s.sessions[id] = record
	}
	for k, v := range vars {
		record[k] = v
	}
	return nil
}
