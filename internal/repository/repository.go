package repository

import (
	"alcyxob/fitness-tracker/internal/domain" // Import our defined domain models
	"context"                                 // Standard for request-scoped deadlines, cancellation signals, etc.

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrInvalidInput = RepositoryError("invalid input")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicate if the email is taken.
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// WorkoutRepository defines the interface for interacting with workout data.
// Every read and write except Create is scoped to the owning user, so a workout
// that exists but belongs to someone else is reported as ErrNotFound.
type WorkoutRepository interface {
	Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error)
	GetByIDForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Workout, error)
	// ListByUser returns the user's workouts, most recent date first.
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Workout, error)
	// Update replaces the mutable fields of workout; workout.UserID must match the stored owner.
	Update(ctx context.Context, workout *domain.Workout) error
	DeleteForUser(ctx context.Context, id, userID primitive.ObjectID) error
}
