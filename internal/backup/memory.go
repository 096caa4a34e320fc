package backup

import "sync"

// MemoryStore keeps the ledger in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	list []Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.list...), nil
}

func (s *MemoryStore) Add(rec Record) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := add(s.list, rec)
	if err != nil {
		return nil, err
	}
	s.list = next
	return append([]Record(nil), next...), nil
}

func (s *MemoryStore) Close() error { return nil }
