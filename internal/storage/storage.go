// Package storage provides the persistent key-value store that backs the
// session and offline drafts.
package storage

import (
	"sort"
	"sync"
)

// Keys used by the application.
const (
	KeyAuthToken    = "auth_token"
	KeyRefreshToken = "refresh_token"
	KeyUserData     = "user_data"
	KeyTokenExpiry  = "token_expiry"
	KeyTokenIssued  = "token_issued_at"
	KeyDrafts       = "tasks"
)

// Store is a string key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes the given keys. Missing keys are ignored.
	Remove(keys ...string) error

	// Update sets and removes keys as one change: either all of it is
	// applied or none of it.
	Update(set map[string]string, remove ...string) error

	// Close releases the underlying resources.
	Close() error
}

// Memory is an in-memory Store, used by tests and as a fallback when no
// state file is wanted.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Update(set map[string]string, remove ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range set {
		m.data[k] = v
	}
	for _, k := range remove {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Close() error { return nil }

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
