package session

import (
	"context"
	"sync"
)

// Store persists sessions and backups. Getters return copies.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	GetBackup(ctx context.Context, id string) (*Backup, error)
	PutBackup(ctx context.Context, b *Backup) error
	Close() error
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	backups  map[string]*Backup
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		backups:  make(map[string]*Backup),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return st.clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, st *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[st.ID] = st.clone()
	return nil
}

func (s *MemoryStore) GetBackup(_ context.Context, id string) (*Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.backups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.clone(), nil
}

func (s *MemoryStore) PutBackup(_ context.Context, b *Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backups[b.ID] = b.clone()
	return nil
}

// Len reports the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) Close() error { return nil }
