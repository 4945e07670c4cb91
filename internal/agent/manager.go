package agent

import (
	"sync"

	"github.com/lazypower/ghostkg/internal/store"
)

// Manager is the process-level agent registry. All agents share one
// store (and through it one database, cache, and memory model); the
// manager only hands out the per-name facades.
type Manager struct {
	store *store.Store

	mu     sync.Mutex
	agents map[string]*Agent
}

// NewManager creates an empty registry over the shared store.
func NewManager(s *store.Store) *Manager {
	return &Manager{
		store:  s,
		agents: make(map[string]*Agent),
	}
}

// Get returns the agent for a name, creating it on first use.
func (m *Manager) Get(name string) *Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[name]
	if !ok {
		a = New(name, m.store)
		m.agents[name] = a
	}
	return a
}

// Remove forgets the in-memory facade and deletes the agent's stored
// data. Subsequent Gets start the agent fresh.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	delete(m.agents, name)
	m.mu.Unlock()
	return m.store.ClearOwner(name)
}

// Store exposes the shared store for status endpoints.
func (m *Manager) Store() *store.Store { return m.store }
