package verification

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process local Store for tests and single node development.
type MemoryStore struct {
	mu      sync.Mutex
	clock   Clock
	records map[string]Record
}

func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{clock: clock, records: make(map[string]Record)}
}

func (m *MemoryStore) Store(_ context.Context, key, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = Record{Code: code, CreatedAt: m.clock()}
	return nil
}

func (m *MemoryStore) Find(_ context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *MemoryStore) IncrementAttempts(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[key]; ok {
		r.Attempts++
		m.records[key] = r
	}
	return nil
}

// Put installs a record verbatim.
func (m *MemoryStore) Put(key string, r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = r
}
