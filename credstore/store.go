package credstore

import (
	"maps"
	"sort"
	"sync"
)

// Store maps account keys to token records. It is safe for concurrent use;
// records are copied in and out so callers never share record memory.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewStore returns a store seeded with a copy of records (which may be nil).
func NewStore(records map[string]Record) *Store {
	s := &Store{records: make(map[string]Record, len(records))}
	maps.Copy(s.records, records)
	return s
}

// Get returns the record for key and whether it exists.
func (s *Store) Get(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key]
	return r, ok
}

// Put inserts or replaces the record for key.
func (s *Store) Put(key string, r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = r
}

// Delete removes key and reports whether it was present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[key]
	delete(s.records, key)
	return ok
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Keys returns all account keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the whole mapping.
func (s *Store) Snapshot() map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.records)
}
