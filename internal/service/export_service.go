package service

import (
	"alcyxob/fitness-tracker/internal/domain"
	"alcyxob/fitness-tracker/internal/stats"
	"alcyxob/fitness-tracker/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrExportDisabled = errors.New("workout export is not configured")
	ErrExportFailed   = errors.New("failed to export workouts")
)

// ExportResult points the client at a freshly written export object.
type ExportResult struct {
	URL       string    `json:"url"`
	ObjectKey string    `json:"objectKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// exportDocument is the JSON layout of an export object.
type exportDocument struct {
	UserID     string           `json:"userId"`
	ExportedAt time.Time        `json:"exportedAt"`
	Stats      stats.Result     `json:"stats"`
	Workouts   []domain.Workout `json:"workouts"`
}

type ExportService interface {
	ExportWorkouts(ctx context.Context, userID primitive.ObjectID) (*ExportResult, error)
}

type exportService struct {
	workoutService WorkoutService
	fileStorage    storage.FileStorage
	urlExpiry      time.Duration
	now            func() time.Time
}

// NewExportService creates an ExportService. A nil fileStorage disables exports.
func NewExportService(workoutService WorkoutService, fileStorage storage.FileStorage, urlExpiry time.Duration) ExportService {
	if urlExpiry <= 0 {
		urlExpiry = storage.DefaultPresignedURLExpiry
	}
	return &exportService{
		workoutService: workoutService,
		fileStorage:    fileStorage,
		urlExpiry:      urlExpiry,
		now:            time.Now,
	}
}

// ExportWorkouts writes the user's workouts and current stats as one JSON object
// and returns a time-limited download link for it.
func (s *exportService) ExportWorkouts(ctx context.Context, userID primitive.ObjectID) (*ExportResult, error) {
	if s.fileStorage == nil {
		return nil, ErrExportDisabled
	}

	workouts, summary, err := s.workoutService.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	body, err := json.MarshalIndent(exportDocument{
		UserID:     userID.Hex(),
		ExportedAt: now,
		Stats:      summary,
		Workouts:   workouts,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	objectKey := path.Join("exports", userID.Hex(), fmt.Sprintf("%s-%s.json", now.Format("20060102T150405Z"), uuid.NewString()))
	if err := s.fileStorage.PutObject(ctx, objectKey, "application/json", body); err != nil {
		log.Errorf("store export %s: %v", objectKey, err)
		return nil, ErrExportFailed
	}

	url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, objectKey, s.urlExpiry)
	if err != nil {
		log.Errorf("presign export %s: %v", objectKey, err)
		return nil, ErrExportFailed
	}

	return &ExportResult{
		URL:       url,
		ObjectKey: objectKey,
		ExpiresAt: now.Add(s.urlExpiry),
	}, nil
}
