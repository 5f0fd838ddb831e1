package repository

import (
	"context"
	"sync"
	"time"

	"github.com/quickqueue/helpdesk/internal/domain"
)

// MemoryUserStore keeps accounts in process memory.
type MemoryUserStore struct {
	mu         sync.RWMutex
	users      map[int64]*domain.User
	byUsername map[string]int64
	nextID     int64

	now func() time.Time
}

// NewMemoryUserStore builds an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:      make(map[int64]*domain.User),
		byUsername: make(map[string]int64),
		now:        time.Now,
	}
}

func (s *MemoryUserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// usernames are unique and case-sensitive
	if _, taken := s.byUsername[user.Username]; taken {
		return ErrDuplicate
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = s.now()

	cp := *user
	s.users[user.ID] = &cp
	s.byUsername[user.Username] = user.ID
	return nil
}

func (s *MemoryUserStore) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	// username is immutable; only profile, role, active and credential move
	stored.FullName = user.FullName
	stored.Email = user.Email
	stored.Role = user.Role
	stored.Active = user.Active
	stored.PasswordHash = user.PasswordHash
	return nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *MemoryUserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *MemoryUserStore) List(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.User, 0, len(s.users))
	for id := int64(1); id <= s.nextID; id++ {
		if user, ok := s.users[id]; ok {
			result = append(result, *user)
		}
	}
	return result, nil
}

func (s *MemoryUserStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return false, nil
	}
	delete(s.byUsername, user.Username)
	delete(s.users, id)
	return true, nil
}
