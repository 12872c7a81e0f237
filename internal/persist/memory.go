package persist

import (
	"context"
	"slices"
	"sync"

	"pkt.systems/capturebadge/schema"
)

// MemoryStore keeps tab records in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	tabs   map[schema.TabID]schema.TabData
	closed bool
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tabs: make(map[schema.TabID]schema.TabData)}
}

// Load returns a copy of the tab's record.
func (m *MemoryStore) Load(_ context.Context, tabID schema.TabID) (schema.TabData, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return schema.TabData{}, false, schema.ErrStoreClosed
	}
	data, ok := m.tabs[tabID]
	if !ok {
		return schema.TabData{}, false, nil
	}
	return data.Clone(), true, nil
}

// Save stores a copy of data for the tab.
func (m *MemoryStore) Save(_ context.Context, tabID schema.TabID, data schema.TabData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return schema.ErrStoreClosed
	}
	m.tabs[tabID] = data.Clone()
	return nil
}

// Delete removes the tab's record.
func (m *MemoryStore) Delete(_ context.Context, tabID schema.TabID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return schema.ErrStoreClosed
	}
	delete(m.tabs, tabID)
	return nil
}

// Tabs lists the tabs with a record in ascending order.
func (m *MemoryStore) Tabs(_ context.Context) ([]schema.TabID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, schema.ErrStoreClosed
	}
	out := make([]schema.TabID, 0, len(m.tabs))
	for id := range m.tabs {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

// Close releases the records; later calls fail with schema.ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.tabs = nil
	return nil
}
