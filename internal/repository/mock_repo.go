package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go-auth-starter/internal/model"
)

// MockUserStore is an in-memory credential store used by tests in place of
// the PostgreSQL-backed UserRepository.
type MockUserStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: map[string]model.User{}}
}

func (s *MockUserStore) FindByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	u.PasswordHash = ""
	return u, nil
}

func (s *MockUserStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	u, err := s.lookupByEmail(email)
	if err != nil {
		return model.User{}, err
	}
	u.PasswordHash = ""
	return u, nil
}

func (s *MockUserStore) FindByEmailWithPassword(_ context.Context, email string) (model.User, error) {
	return s.lookupByEmail(email)
}

func (s *MockUserStore) lookupByEmail(email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if strings.ToLower(u.Email) == needle {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *MockUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (s *MockUserStore) Create(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(u.Email)
	for _, existing := range s.users {
		if strings.ToLower(existing.Email) == needle {
			return model.ErrUserAlreadyExists
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MockUserStore) UpdateRefreshTokenHash(_ context.Context, userID string, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.RefreshTokenHash = &hash
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

func (s *MockUserStore) RotateRefreshTokenHash(_ context.Context, userID string, prevHash string, newHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.RefreshTokenHash == nil || *u.RefreshTokenHash != prevHash {
		return false, nil
	}
	u.RefreshTokenHash = &newHash
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return true, nil
}

func (s *MockUserStore) RemoveRefreshTokenHash(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	u.RefreshTokenHash = nil
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

func (s *MockUserStore) UpdateRole(_ context.Context, userID string, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

func (s *MockUserStore) SetActive(_ context.Context, userID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.IsActive = active
	if !active {
		u.RefreshTokenHash = nil
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

func (s *MockUserStore) List(_ context.Context) ([]model.PublicUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]model.PublicUser, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u.PublicView())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// Stored returns the raw record, hashes included. Test helper.
func (s *MockUserStore) Stored(userID string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	return u, ok
}
