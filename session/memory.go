package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps records in process memory. Records are stored encoded so that
// callers never share mutable state with the store, matching the Redis behaviour.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: map[string]memoryEntry{}}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok && m.ttl > 0 && m.now().After(e.expires) {
		delete(m.entries, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return &Record{}, nil
	}
	var rec Record
	if err := json.Unmarshal(e.data, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &rec, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, rec *Record) error {
	if id == "" {
		return ErrInvalidID
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	m.mu.Lock()
	m.entries[id] = memoryEntry{data: data, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// Sweep drops expired records and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}
