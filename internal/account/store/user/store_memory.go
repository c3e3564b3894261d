// Package user stores accounts.
package user

import (
	"context"
	"sync"

	"churnboard/internal/account"
	id "churnboard/pkg/domain"
	"churnboard/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in process memory. Emails are unique.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*account.User
	byEmail map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]*account.User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *InMemoryUserStore) Create(_ context.Context, u *account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.users[u.ID]; ok {
		return sentinel.ErrConflict
	}
	s.users[u.ID] = clone(u)
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(u), nil
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.users[userID]), nil
}

// Update replaces the stored user. The email is immutable.
func (s *InMemoryUserStore) Update(_ context.Context, u *account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	updated := clone(u)
	updated.Email = existing.Email
	s.users[u.ID] = updated
	return nil
}

func clone(u *account.User) *account.User {
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
