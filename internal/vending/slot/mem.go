package slot

import "sync"

// MemStore is an in-memory Backend used by tests and the simulator.
type MemStore struct {
	mu    sync.RWMutex
	slots map[Addr]Word
}

func NewMemStore() *MemStore {
	return &MemStore{slots: make(map[Addr]Word)}
}

func (m *MemStore) Get(a Addr) (Word, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.slots[a]
	return w, ok, nil
}

func (m *MemStore) Apply(batch []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, wr := range batch {
		m.slots[wr.Addr] = wr.Word
	}
	return nil
}

// Len returns the number of populated slots.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

// Snapshot copies the whole slot map.
func (m *MemStore) Snapshot() map[Addr]Word {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Addr]Word, len(m.slots))
	for k, v := range m.slots {
		out[k] = v
	}
	return out
}
