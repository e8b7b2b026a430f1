package credstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store. It is safe for concurrent use and is the
// backend used in tests and for processes that opt out of persistence.
type Memory struct {
	mu   sync.Mutex
	cred Credential
	set  bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save replaces the stored credential.
func (m *Memory) Save(_ context.Context, cred Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = cred
	m.set = true
	return nil
}

// Load returns the stored credential, if any.
func (m *Memory) Load(_ context.Context) (Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred, m.set
}

// Clear removes the stored credential.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = Credential{}
	m.set = false
	return nil
}
