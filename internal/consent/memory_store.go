package consent

import "sync"

type MemoryStore struct {
	mu      sync.Mutex
	record  *Record
	LoadErr error
	SaveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return Record{}, s.LoadErr
	}
	if s.record == nil {
		return Record{}, ErrNoRecord
	}
	return *s.record, nil
}

func (s *MemoryStore) Save(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.record = &record
	return nil
}
