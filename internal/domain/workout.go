package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExerciseType classifies a logged workout.
type ExerciseType string

const (
	ExerciseCardio      ExerciseType = "cardio"
	ExerciseStrength    ExerciseType = "strength"
	ExerciseFlexibility ExerciseType = "flexibility"
	ExerciseSports      ExerciseType = "sports"
	ExerciseOther       ExerciseType = "other"
)

const (
	MaxExerciseNameLength = 100
	MaxNotesLength        = 500
)

// ErrInvalidWorkout is wrapped by every error returned from Workout.Validate.
var ErrInvalidWorkout = errors.New("invalid workout")

// ExerciseTypes lists the accepted exercise types in display order.
func ExerciseTypes() []ExerciseType {
	return []ExerciseType{ExerciseCardio, ExerciseStrength, ExerciseFlexibility, ExerciseSports, ExerciseOther}
}

// Valid reports whether t is one of the known exercise types.
func (t ExerciseType) Valid() bool {
	for _, known := range ExerciseTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Workout is a single logged training session owned by one user.
type Workout struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	UserID         primitive.ObjectID `bson:"user" json:"user"`
	ExerciseName   string             `bson:"exerciseName" json:"exerciseName"`
	ExerciseType   ExerciseType       `bson:"exerciseType" json:"exerciseType"`
	Duration       int                `bson:"duration" json:"duration"` // minutes
	CaloriesBurned int                `bson:"caloriesBurned" json:"caloriesBurned"`
	Sets           int                `bson:"sets" json:"sets"`
	Reps           int                `bson:"reps" json:"reps"`
	Weight         float64            `bson:"weight" json:"weight"`
	Distance       float64            `bson:"distance" json:"distance"`
	Notes          string             `bson:"notes,omitempty" json:"notes"`
	Date           time.Time          `bson:"date" json:"date"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Validate checks the field constraints every stored workout must satisfy.
// It trims the exercise name in place.
func (w *Workout) Validate() error {
	w.ExerciseName = strings.TrimSpace(w.ExerciseName)
	switch {
	case w.ExerciseName == "":
		return fmt.Errorf("%w: exercise name is required", ErrInvalidWorkout)
	case utf8.RuneCountInString(w.ExerciseName) > MaxExerciseNameLength:
		return fmt.Errorf("%w: exercise name cannot be more than %d characters", ErrInvalidWorkout, MaxExerciseNameLength)
	case !w.ExerciseType.Valid():
		return fmt.Errorf("%w: unknown exercise type %q", ErrInvalidWorkout, w.ExerciseType)
	case w.Duration < 1:
		return fmt.Errorf("%w: duration must be at least 1 minute", ErrInvalidWorkout)
	case w.CaloriesBurned < 0:
		return fmt.Errorf("%w: calories cannot be negative", ErrInvalidWorkout)
	case w.Sets < 0 || w.Reps < 0:
		return fmt.Errorf("%w: sets and reps cannot be negative", ErrInvalidWorkout)
	case w.Weight < 0 || w.Distance < 0:
		return fmt.Errorf("%w: weight and distance cannot be negative", ErrInvalidWorkout)
	case utf8.RuneCountInString(w.Notes) > MaxNotesLength:
		return fmt.Errorf("%w: notes cannot be more than %d characters", ErrInvalidWorkout, MaxNotesLength)
	case w.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidWorkout)
	}
	return nil
}
