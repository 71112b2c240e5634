// Package memory provides process-local repositories. Data does not survive a
// restart; it backs the demo mode and the tests.
package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fitness-tracker/internal/domain"
	"alcyxob/fitness-tracker/internal/repository"
)

type memoryUserRepository struct {
	mu      sync.RWMutex
	users   map[primitive.ObjectID]domain.User
	byEmail map[string]primitive.ObjectID
}

// NewMemoryUserRepository creates an empty in-memory user repository.
func NewMemoryUserRepository() repository.UserRepository {
	return &memoryUserRepository{
		users:   make(map[primitive.ObjectID]domain.User),
		byEmail: make(map[string]primitive.ObjectID),
	}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}
	email := domain.NormalizeEmail(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return primitive.NilObjectID, repository.ErrDuplicate
	}

	user.ID = primitive.NewObjectID()
	user.Email = email
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.users[user.ID] = *user
	r.byEmail[email] = user.ID
	return user.ID, nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	user := r.users[id]
	return &user, nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}
