// Package settings persists local terminal preferences (theme, account
// ordering, window layout) as a JSON key/value file. The store sits outside
// the protocol path; losing it never affects trading state.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// Store is a file-backed key/value store. Writes lock the file so multiple
// terminal processes sharing a state dir do not clobber each other.
type Store struct {
	path string
	log  zerolog.Logger

	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// New creates a store backed by path. The file is created lazily on the
// first Set.
func New(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:   path,
		log:    logger.With().Str("component", "settings").Logger(),
		values: make(map[string]json.RawMessage),
	}
}

// Load reads the file into memory. A missing file is an empty store.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.values = make(map[string]json.RawMessage)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	values := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	s.values = values
	return nil
}

// Get unmarshals the value stored under key into v.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode setting %q: %w", key, err)
	}
	return true, nil
}

// GetString returns the string stored under key, or fallback.
func (s *Store) GetString(key, fallback string) string {
	var out string
	if ok, err := s.Get(key, &out); err != nil || !ok {
		return fallback
	}
	return out
}

// Set stores a value under key and persists the whole store.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	return s.saveLocked()
}

// Delete removes a key and persists the store. Deleting an absent key is a
// no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

// Keys returns all stored keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// saveLocked writes the store atomically: temp file then rename, guarded by
// a file lock against sibling processes.
func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	fileLock := flock.New(s.path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("lock settings file: %w", err)
	}
	defer func() { _ = fileLock.Unlock() }()

	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
