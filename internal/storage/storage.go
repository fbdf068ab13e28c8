// Package storage provides the local key-value persistence used by the diary
// and profile stores. Each key maps to one JSON file holding one whole value;
// every write replaces the whole file, which is the unit of atomicity the
// stores rely on.
package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Store is a directory-backed JSON key-value store.
type Store struct {
	mu  sync.Mutex
	dir string
}

// Open prepares the backing directory and returns a store bound to it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Read unmarshals the value under key into out. A missing or unparseable
// value reports false so callers degrade to their zero state instead of
// failing reads over corrupt data.
func (s *Store) Read(key string, out any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("[storage] discarding corrupt value for key=%s: %v", key, err)
		return false
	}
	return true
}

// Write replaces the value under key. The value is staged to a temp file and
// renamed into place so readers never observe a partial write.
func (s *Store) Write(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value for key %s: %w", key, err)
	}

	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to stage value for key %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to stage value for key %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to stage value for key %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to persist key %s: %w", key, err)
	}
	return nil
}

// Delete removes the value under key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		log.Printf("[storage] failed to delete key=%s: %v", key, err)
	}
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
