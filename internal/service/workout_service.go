package service

import (
	"alcyxob/fitness-tracker/internal/domain"
	"alcyxob/fitness-tracker/internal/repository"
	"alcyxob/fitness-tracker/internal/stats"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrWorkoutNotFound = errors.New("workout not found")

// WorkoutInput carries the fields of a new workout. A nil Date means now.
type WorkoutInput struct {
	ExerciseName   string
	ExerciseType   domain.ExerciseType
	Duration       int
	CaloriesBurned int
	Sets           int
	Reps           int
	Weight         float64
	Distance       float64
	Notes          string
	Date           *time.Time
}

// WorkoutPatch describes a partial update; nil fields are left untouched.
type WorkoutPatch struct {
	ExerciseName   *string
	ExerciseType   *domain.ExerciseType
	Duration       *int
	CaloriesBurned *int
	Sets           *int
	Reps           *int
	Weight         *float64
	Distance       *float64
	Notes          *string
	Date           *time.Time
}

func (p WorkoutPatch) apply(w *domain.Workout) {
	if p.ExerciseName != nil {
		w.ExerciseName = *p.ExerciseName
	}
	if p.ExerciseType != nil {
		w.ExerciseType = *p.ExerciseType
	}
	if p.Duration != nil {
		w.Duration = *p.Duration
	}
	if p.CaloriesBurned != nil {
		w.CaloriesBurned = *p.CaloriesBurned
	}
	if p.Sets != nil {
		w.Sets = *p.Sets
	}
	if p.Reps != nil {
		w.Reps = *p.Reps
	}
	if p.Weight != nil {
		w.Weight = *p.Weight
	}
	if p.Distance != nil {
		w.Distance = *p.Distance
	}
	if p.Notes != nil {
		w.Notes = *p.Notes
	}
	if p.Date != nil {
		w.Date = p.Date.UTC()
	}
}

type WorkoutService interface {
	ListWorkouts(ctx context.Context, userID primitive.ObjectID) ([]domain.Workout, error)
	GetWorkout(ctx context.Context, userID, workoutID primitive.ObjectID) (*domain.Workout, error)
	CreateWorkout(ctx context.Context, userID primitive.ObjectID, input WorkoutInput) (*domain.Workout, error)
	UpdateWorkout(ctx context.Context, userID, workoutID primitive.ObjectID, patch WorkoutPatch) (*domain.Workout, error)
	DeleteWorkout(ctx context.Context, userID, workoutID primitive.ObjectID) error
	// GetStats aggregates all of the user's workouts relative to the current day.
	GetStats(ctx context.Context, userID primitive.ObjectID) (stats.Result, error)
	// Snapshot returns the user's workouts and the stats computed from that same read.
	Snapshot(ctx context.Context, userID primitive.ObjectID) ([]domain.Workout, stats.Result, error)
}

type workoutService struct {
	workoutRepo repository.WorkoutRepository
	aggregator  *stats.Aggregator
	now         func() time.Time
}

// NewWorkoutService creates a WorkoutService. Calendar days for stats are taken
// in the aggregator's location; now defaults to time.Now.
func NewWorkoutService(workoutRepo repository.WorkoutRepository, aggregator *stats.Aggregator, now func() time.Time) WorkoutService {
	if aggregator == nil {
		aggregator = stats.NewAggregator(time.UTC)
	}
	if now == nil {
		now = time.Now
	}
	return &workoutService{
		workoutRepo: workoutRepo,
		aggregator:  aggregator,
		now:         now,
	}
}

func (s *workoutService) ListWorkouts(ctx context.Context, userID primitive.ObjectID) ([]domain.Workout, error) {
	workouts, err := s.workoutRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	return workouts, nil
}

func (s *workoutService) GetWorkout(ctx context.Context, userID, workoutID primitive.ObjectID) (*domain.Workout, error) {
	workout, err := s.workoutRepo.GetByIDForUser(ctx, workoutID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return workout, nil
}

func (s *workoutService) CreateWorkout(ctx context.Context, userID primitive.ObjectID, input WorkoutInput) (*domain.Workout, error) {
	date := s.now().UTC()
	if input.Date != nil {
		date = input.Date.UTC()
	}

	workout := &domain.Workout{
		UserID:         userID,
		ExerciseName:   input.ExerciseName,
		ExerciseType:   input.ExerciseType,
		Duration:       input.Duration,
		CaloriesBurned: input.CaloriesBurned,
		Sets:           input.Sets,
		Reps:           input.Reps,
		Weight:         input.Weight,
		Distance:       input.Distance,
		Notes:          input.Notes,
		Date:           date,
	}
	if err := workout.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.workoutRepo.Create(ctx, workout); err != nil {
		return nil, fmt.Errorf("create workout: %w", err)
	}
	return workout, nil
}

func (s *workoutService) UpdateWorkout(ctx context.Context, userID, workoutID primitive.ObjectID, patch WorkoutPatch) (*domain.Workout, error) {
	workout, err := s.GetWorkout(ctx, userID, workoutID)
	if err != nil {
		return nil, err
	}

	patch.apply(workout)
	// The merged record must still be well-formed, or stats would aggregate garbage.
	if err := workout.Validate(); err != nil {
		return nil, err
	}

	if err := s.workoutRepo.Update(ctx, workout); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, fmt.Errorf("update workout: %w", err)
	}
	return workout, nil
}

func (s *workoutService) DeleteWorkout(ctx context.Context, userID, workoutID primitive.ObjectID) error {
	if err := s.workoutRepo.DeleteForUser(ctx, workoutID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWorkoutNotFound
		}
		return fmt.Errorf("delete workout: %w", err)
	}
	return nil
}

func (s *workoutService) GetStats(ctx context.Context, userID primitive.ObjectID) (stats.Result, error) {
	_, result, err := s.Snapshot(ctx, userID)
	return result, err
}

func (s *workoutService) Snapshot(ctx context.Context, userID primitive.ObjectID) ([]domain.Workout, stats.Result, error) {
	workouts, err := s.workoutRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, stats.Result{}, fmt.Errorf("list workouts for stats: %w", err)
	}
	return workouts, s.summarize(workouts), nil
}

func (s *workoutService) summarize(workouts []domain.Workout) stats.Result {
	records := make([]stats.Record, len(workouts))
	for i, w := range workouts {
		records[i] = stats.Record{
			ExerciseType:    string(w.ExerciseType),
			DurationMinutes: w.Duration,
			CaloriesBurned:  w.CaloriesBurned,
			Date:            w.Date,
		}
	}
	return s.aggregator.Compute(records, s.aggregator.Today(s.now()))
}
