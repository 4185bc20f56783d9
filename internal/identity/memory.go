package identity

import "sync"

// Memory keeps identities for the lifetime of the process
type Memory struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewMemory creates an empty in-memory identity store
func NewMemory() *Memory {
	return &Memory{ids: make(map[string]string)}
}

func (m *Memory) PlayerID(code string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ids[key(code)]
	return id, ok
}

func (m *Memory) SetPlayerID(code, playerID string) error {
	m.mu.Lock()
	m.ids[key(code)] = playerID
	m.mu.Unlock()
	return nil
}
