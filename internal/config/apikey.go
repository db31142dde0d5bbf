package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// APIKeyStore resolves the generative model key: environment first, then
// the key file written by /configure_api_key.
type APIKeyStore struct {
	mu      sync.RWMutex
	path    string
	current string
}

// NewAPIKeyStore seeds the store from envKey or, when empty, from the file.
func NewAPIKeyStore(path, envKey string) *APIKeyStore {
	s := &APIKeyStore{path: path, current: strings.TrimSpace(envKey)}
	if s.current == "" && path != "" {
		if data, err := os.ReadFile(path); err == nil {
			s.current = strings.TrimSpace(string(data))
		}
	}
	return s
}

// Get returns the active key, possibly empty.
func (s *APIKeyStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Configured reports whether a key is available.
func (s *APIKeyStore) Configured() bool { return s.Get() != "" }

// Set persists key to the key file and makes it active.
func (s *APIKeyStore) Set(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("api key is empty")
	}
	if s.path != "" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
		if err := os.WriteFile(s.path, []byte(key), 0o600); err != nil {
			return fmt.Errorf("write key file: %w", err)
		}
	}
	s.mu.Lock()
	s.current = key
	s.mu.Unlock()
	return nil
}
