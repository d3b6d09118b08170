package credstore

import (
	"sync"

	"github.com/contextanchor/anchorctl/internal/api"
)

// MemoryStore keeps the session in process memory. Used by tests and by
// API-key callers that still want login to work within a single run.
type MemoryStore struct {
	mu   sync.RWMutex
	sess *api.Session
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load() (*api.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return nil, nil
	}
	copied := *s.sess
	return &copied, nil
}

func (s *MemoryStore) Save(sess *api.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *sess
	s.sess = &copied
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	return nil
}
