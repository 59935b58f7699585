package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory. Nothing survives a
// restart; it exists for tests and for callers that explicitly want an
// ephemeral session.
type MemoryStore struct {
	mu      sync.RWMutex
	data    []byte
	version string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, ErrNoSession
	}
	return Decode(m.data)
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = data
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = nil
	return nil
}

func (m *MemoryStore) AppVersion(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.version, nil
}

func (m *MemoryStore) SetAppVersion(_ context.Context, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.version = version
	return nil
}

func (m *MemoryStore) Wipe(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = nil
	m.version = ""
	return nil
}
