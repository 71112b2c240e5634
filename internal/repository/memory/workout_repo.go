package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fitness-tracker/internal/domain"
	"alcyxob/fitness-tracker/internal/repository"
)

type memoryWorkoutRepository struct {
	mu       sync.RWMutex
	workouts map[primitive.ObjectID]domain.Workout
}

// NewMemoryWorkoutRepository creates an empty in-memory workout repository.
func NewMemoryWorkoutRepository() repository.WorkoutRepository {
	return &memoryWorkoutRepository{
		workouts: make(map[primitive.ObjectID]domain.Workout),
	}
}

func (r *memoryWorkoutRepository) Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	if workout.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	workout.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	workout.CreatedAt = now
	workout.UpdatedAt = now
	r.workouts[workout.ID] = *workout
	return workout.ID, nil
}

func (r *memoryWorkoutRepository) GetByIDForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Workout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workouts[id]
	if !ok || w.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &w, nil
}

func (r *memoryWorkoutRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Workout, error) {
	r.mu.RLock()
	out := []domain.Workout{}
	for _, w := range r.workouts {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memoryWorkoutRepository) Update(ctx context.Context, workout *domain.Workout) error {
	if workout.ID == primitive.NilObjectID || workout.UserID == primitive.NilObjectID {
		return repository.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.workouts[workout.ID]
	if !ok || stored.UserID != workout.UserID {
		return repository.ErrNotFound
	}
	workout.CreatedAt = stored.CreatedAt
	workout.UpdatedAt = time.Now().UTC()
	r.workouts[workout.ID] = *workout
	return nil
}

func (r *memoryWorkoutRepository) DeleteForUser(ctx context.Context, id, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workouts[id]
	if !ok || w.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.workouts, id)
	return nil
}
