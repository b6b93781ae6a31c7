package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// JSONFile keeps the whole cache in memory and writes it back as one JSON
// object keyed by video id on Flush. A run that dies before Flush loses the
// entries it fetched.
type JSONFile struct {
	path  string
	mu    sync.Mutex
	data  map[string]json.RawMessage
	dirty bool
}

// OpenJSON loads path if it exists; a missing file is an empty cache.
func OpenJSON(path string) (*JSONFile, error) {
	s := &JSONFile{path: path, data: make(map[string]json.RawMessage)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	slog.Debug("store: json cache loaded", slog.String("path", path), slog.Int("entries", len(s.data)))
	return s, nil
}

func (s *JSONFile) Upsert(ctx context.Context, key string, fill FillFunc) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; ok {
		return v, false, nil
	}
	v, err := fill(ctx)
	if err != nil {
		return nil, false, err
	}
	if !json.Valid(v) {
		return nil, false, fmt.Errorf("store: value for %q is not valid JSON", key)
	}
	s.data[key] = v
	s.dirty = true
	return v, true, nil
}

func (s *JSONFile) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data), nil
}

// Flush writes the cache file when anything was added since the last flush.
func (s *JSONFile) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	out, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	s.dirty = false
	slog.Debug("store: json cache saved", slog.String("path", s.path), slog.Int("entries", len(s.data)))
	return nil
}

func (s *JSONFile) Close() error { return nil }
