package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Keys persisted by the client. They mirror the server-side session fields.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyAgentData    = "agentData"
)

// SessionKeys are wiped on logout or when a refresh fails.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyAgentData}

// TokenStore is the client's key/value session storage.
type TokenStore interface {
	Get(key string) string
	Set(values map[string]string) error
	Remove(keys ...string) error
}

// LocalStore is a TokenStore backed by a JSON file, written atomically on every change.
type LocalStore struct {
	path string
	mu   sync.Mutex
	data map[string]string
}

// OpenLocalStore loads path if it exists. A missing file is an empty store.
func OpenLocalStore(path string) (*LocalStore, error) {
	s := &LocalStore{path: path, data: map[string]string{}}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("local store: read: %w", err)
	}
	if len(b) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		return nil, fmt.Errorf("local store: decode %s: %w", path, err)
	}
	return s, nil
}

func (s *LocalStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

func (s *LocalStore) Set(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.data[k] = v
	}
	return s.flush()
}

func (s *LocalStore) Remove(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return s.flush()
}

func (s *LocalStore) flush() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("local store: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("local store: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("local store: rename: %w", err)
	}
	return nil
}

// MemoryStore is a TokenStore for service-to-service use and tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemoryStore(values map[string]string) *MemoryStore {
	m := &MemoryStore{data: map[string]string{}}
	for k, v := range values {
		m.data[k] = v
	}
	return m
}

func (m *MemoryStore) Get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

func (m *MemoryStore) Set(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.data[k] = v
	}
	return nil
}

func (m *MemoryStore) Remove(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
