package ledger

import (
	"sync"
)

// Store is the durable backend beneath a Ledger. Keys are opaque to the
// backend; Commit applies a write batch atomically.
type Store interface {
	Get(key []byte) ([]byte, bool, error)
	Commit(writes map[string][]byte) error
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	Compact() error
	Close() error
}

// MemStore is an in-memory Store used by tests and ephemeral nodes.
type MemStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string][]byte),
	}
}

func (s *MemStore) Get(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.records[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *MemStore) Commit(writes map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range writes {
		stored := make([]byte, len(value))
		copy(stored, value)
		s.records[key] = stored
	}
	return nil
}

func (s *MemStore) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	snapshot := make(map[string][]byte, len(s.records))
	for key, value := range s.records {
		snapshot[key] = value
	}
	s.mu.RUnlock()

	p := string(prefix)
	for key, value := range snapshot {
		if len(key) < len(p) || key[:len(p)] != p {
			continue
		}
		if err := fn([]byte(key), value); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemStore) Compact() error { return nil }

func (s *MemStore) Close() error { return nil }
