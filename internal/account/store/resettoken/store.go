// Package resettoken stores single-use password reset tokens by their hash.
package resettoken

import (
	"context"
	"sync"
	"time"

	id "churnboard/pkg/domain"
	"churnboard/pkg/platform/sentinel"
)

type entry struct {
	userID    id.UserID
	expiresAt time.Time
}

// InMemoryStore keeps reset tokens in process memory.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Save records tokenHash for userID until ttl elapses.
func (s *InMemoryStore) Save(_ context.Context, tokenHash string, userID id.UserID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tokenHash] = entry{userID: userID, expiresAt: s.now().Add(ttl)}
	return nil
}

// Consume removes tokenHash and returns its user. Unknown tokens return
// ErrNotFound; expired ones ErrExpired.
func (s *InMemoryStore) Consume(_ context.Context, tokenHash string) (id.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[tokenHash]
	if !ok {
		return id.UserID{}, sentinel.ErrNotFound
	}
	delete(s.entries, tokenHash)
	if !s.now().Before(e.expiresAt) {
		return id.UserID{}, sentinel.ErrExpired
	}
	return e.userID, nil
}
