package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocationStore keeps revocations in process. Used when no redis is configured, and in tests.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time // {sid: expiry}
	NowFunc func() time.Time     // mockable
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		revoked: make(map[string]time.Time),
		NowFunc: time.Now,
	}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, sid string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[sid] = s.NowFunc().Add(ttl)
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, sid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.revoked[sid]
	if !ok {
		return false, nil
	}
	if !s.NowFunc().Before(exp) {
		delete(s.revoked, sid)
		return false, nil
	}
	return true, nil
}
