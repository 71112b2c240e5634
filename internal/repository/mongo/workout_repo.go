// internal/repository/mongo/workout_repo.go
package mongo

import (
	"alcyxob/fitness-tracker/internal/domain"
	"alcyxob/fitness-tracker/internal/repository"
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const workoutCollectionName = "workouts"

// mongoWorkoutRepository implements repository.WorkoutRepository
type mongoWorkoutRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutRepository creates a new Workout repository.
func NewMongoWorkoutRepository(db *mongo.Database) repository.WorkoutRepository {
	return &mongoWorkoutRepository{
		collection: db.Collection(workoutCollectionName),
	}
}

// Create inserts a new workout.
func (r *mongoWorkoutRepository) Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	if workout.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}
	workout.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	workout.CreatedAt = now
	workout.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, workout)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted workout ID")
	}
	return insertedID, nil
}

// GetByIDForUser retrieves a single workout owned by userID.
func (r *mongoWorkoutRepository) GetByIDForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Workout, error) {
	var workout domain.Workout
	filter := bson.M{"_id": id, "user": userID}
	err := r.collection.FindOne(ctx, filter).Decode(&workout)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &workout, nil
}

// ListByUser retrieves all workouts of a user, newest first.
func (r *mongoWorkoutRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Workout, error) {
	workouts := []domain.Workout{}
	filter := bson.M{"user": userID}
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &workouts); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return workouts, nil
}

// Update overwrites the mutable fields of a workout owned by workout.UserID.
func (r *mongoWorkoutRepository) Update(ctx context.Context, workout *domain.Workout) error {
	if workout.ID == primitive.NilObjectID || workout.UserID == primitive.NilObjectID {
		return repository.ErrInvalidInput
	}

	// The owner is part of the filter; ownership never changes through an update.
	filter := bson.M{"_id": workout.ID, "user": workout.UserID}
	workout.UpdatedAt = time.Now().UTC()
	updateDoc := bson.M{
		"$set": bson.M{
			"exerciseName":   workout.ExerciseName,
			"exerciseType":   workout.ExerciseType,
			"duration":       workout.Duration,
			"caloriesBurned": workout.CaloriesBurned,
			"sets":           workout.Sets,
			"reps":           workout.Reps,
			"weight":         workout.Weight,
			"distance":       workout.Distance,
			"notes":          workout.Notes,
			"date":           workout.Date,
			"updatedAt":      workout.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, updateDoc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteForUser removes a workout if it exists and belongs to userID.
func (r *mongoWorkoutRepository) DeleteForUser(ctx context.Context, id, userID primitive.ObjectID) error {
	filter := bson.M{
		"_id":  id,
		"user": userID,
	}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		// Workout not found OR not owned by this user.
		return repository.ErrNotFound
	}
	return nil
}

// EnsureWorkoutIndexes creates necessary indexes. Call during startup.
func EnsureWorkoutIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Listing and stats both read one user's workouts ordered by date.
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Warnf("failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
