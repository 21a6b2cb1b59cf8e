package user

import (
	"context"
	"sync"

	"github.com/medsecop/platform/internal/auth"
	"github.com/medsecop/platform/internal/shared/errors"
	"github.com/medsecop/platform/internal/shared/types"
)

// MemoryRepository is an in-memory Repository for tests and local development
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[types.ID]User
}

// NewMemoryRepository creates an empty in-memory user repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[types.ID]User)}
}

func (r *MemoryRepository) FindByID(ctx context.Context, id types.ID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("user", id.String())
	}
	return &u, nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, errors.NotFound("user", email)
}

func (r *MemoryRepository) ListByRole(ctx context.Context, role auth.Role, activeOnly bool) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []User
	for _, u := range r.users {
		if u.Role != role {
			continue
		}
		if activeOnly && !u.Active {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *MemoryRepository) Save(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[u.ID] = *u
	return nil
}
