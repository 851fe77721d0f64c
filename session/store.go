package session

import (
	"sync"
)

// Store persists purchaser access tokens keyed by unit UID.
type Store interface {
	// Get returns the token for unitUID and whether one was stored.
	Get(unitUID string) (string, bool, error)
	Set(unitUID, token string) error
	Delete(unitUID string) error
	// Clear removes every stored token.
	Clear() error
}

// MemoryStore keeps tokens for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (m *MemoryStore) Get(unitUID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[unitUID]
	return t, ok, nil
}

func (m *MemoryStore) Set(unitUID, token string) error {
	m.mu.Lock()
	m.tokens[unitUID] = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(unitUID string) error {
	m.mu.Lock()
	delete(m.tokens, unitUID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.tokens = make(map[string]string)
	m.mu.Unlock()
	return nil
}
