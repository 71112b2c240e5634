package api

import (
	"alcyxob/fitness-tracker/internal/domain"
	"alcyxob/fitness-tracker/internal/metrics"
	"alcyxob/fitness-tracker/internal/service"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WorkoutHandler struct {
	workoutService service.WorkoutService
	exportService  service.ExportService
	metrics        *metrics.Manager
	// loc interprets date-only inputs such as "2024-03-02".
	loc *time.Location
}

func NewWorkoutHandler(
	workoutService service.WorkoutService,
	exportService service.ExportService,
	metricsManager *metrics.Manager,
	loc *time.Location,
) *WorkoutHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &WorkoutHandler{
		workoutService: workoutService,
		exportService:  exportService,
		metrics:        metricsManager,
		loc:            loc,
	}
}

// --- DTOs ---

type CreateWorkoutRequest struct {
	ExerciseName   string              `json:"exerciseName" binding:"required"`
	ExerciseType   domain.ExerciseType `json:"exerciseType" binding:"required"`
	Duration       *int                `json:"duration" binding:"required,min=1"`
	CaloriesBurned *int                `json:"caloriesBurned" binding:"required,min=0"`
	Sets           int                 `json:"sets" binding:"min=0"`
	Reps           int                 `json:"reps" binding:"min=0"`
	Weight         float64             `json:"weight" binding:"min=0"`
	Distance       float64             `json:"distance" binding:"min=0"`
	Notes          string              `json:"notes"`
	Date           string              `json:"date"` // YYYY-MM-DD or RFC 3339
}

// UpdateWorkoutRequest carries a partial update; absent fields keep their value.
type UpdateWorkoutRequest struct {
	ExerciseName   *string              `json:"exerciseName"`
	ExerciseType   *domain.ExerciseType `json:"exerciseType"`
	Duration       *int                 `json:"duration"`
	CaloriesBurned *int                 `json:"caloriesBurned"`
	Sets           *int                 `json:"sets"`
	Reps           *int                 `json:"reps"`
	Weight         *float64             `json:"weight"`
	Distance       *float64             `json:"distance"`
	Notes          *string              `json:"notes"`
	Date           *string              `json:"date"`
}

// --- Handler Methods ---

// ListWorkouts godoc
// @Summary List the authenticated user's workouts, newest first
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Workout
// @Router /workouts [get]
func (h *WorkoutHandler) ListWorkouts(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	workouts, err := h.workoutService.ListWorkouts(c.Request.Context(), userID)
	if err != nil {
		h.serverError(c, "list workouts", err)
		return
	}
	c.JSON(http.StatusOK, workouts)
}

// GetStats godoc
// @Summary Aggregate statistics over all of the user's workouts
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} stats.Result
// @Router /workouts/stats [get]
func (h *WorkoutHandler) GetStats(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	result, err := h.workoutService.GetStats(c.Request.Context(), userID)
	if err != nil {
		h.serverError(c, "compute stats", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *WorkoutHandler) GetWorkout(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	workoutID, ok := workoutIDParam(c)
	if !ok {
		return
	}

	workout, err := h.workoutService.GetWorkout(c.Request.Context(), userID, workoutID)
	if err != nil {
		h.handleWorkoutError(c, "get workout", err)
		return
	}
	c.JSON(http.StatusOK, workout)
}

// CreateWorkout godoc
// @Summary Log a workout
// @Tags Workouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workout body CreateWorkoutRequest true "Workout details"
// @Success 201 {object} domain.Workout
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Router /workouts [post]
func (h *WorkoutHandler) CreateWorkout(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req CreateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, validationMessage(err))
		return
	}

	input := service.WorkoutInput{
		ExerciseName:   req.ExerciseName,
		ExerciseType:   req.ExerciseType,
		Duration:       *req.Duration,
		CaloriesBurned: *req.CaloriesBurned,
		Sets:           req.Sets,
		Reps:           req.Reps,
		Weight:         req.Weight,
		Distance:       req.Distance,
		Notes:          req.Notes,
	}
	if req.Date != "" {
		date, err := parseWorkoutDate(req.Date, h.loc)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		input.Date = &date
	}

	workout, err := h.workoutService.CreateWorkout(c.Request.Context(), userID, input)
	if err != nil {
		h.handleWorkoutError(c, "create workout", err)
		return
	}

	if h.metrics != nil {
		h.metrics.CounterWorkoutsCreated.Inc()
	}
	c.JSON(http.StatusCreated, workout)
}

func (h *WorkoutHandler) UpdateWorkout(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	workoutID, ok := workoutIDParam(c)
	if !ok {
		return
	}

	var req UpdateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, validationMessage(err))
		return
	}

	patch := service.WorkoutPatch{
		ExerciseName:   req.ExerciseName,
		ExerciseType:   req.ExerciseType,
		Duration:       req.Duration,
		CaloriesBurned: req.CaloriesBurned,
		Sets:           req.Sets,
		Reps:           req.Reps,
		Weight:         req.Weight,
		Distance:       req.Distance,
		Notes:          req.Notes,
	}
	if req.Date != nil {
		date, err := parseWorkoutDate(*req.Date, h.loc)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		patch.Date = &date
	}

	workout, err := h.workoutService.UpdateWorkout(c.Request.Context(), userID, workoutID, patch)
	if err != nil {
		h.handleWorkoutError(c, "update workout", err)
		return
	}
	c.JSON(http.StatusOK, workout)
}

func (h *WorkoutHandler) DeleteWorkout(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	workoutID, ok := workoutIDParam(c)
	if !ok {
		return
	}

	if err := h.workoutService.DeleteWorkout(c.Request.Context(), userID, workoutID); err != nil {
		h.handleWorkoutError(c, "delete workout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Workout removed"})
}

// ExportWorkouts godoc
// @Summary Export all workouts and stats to object storage
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Success 201 {object} service.ExportResult
// @Failure 503 {object} gin.H "Export not configured"
// @Router /workouts/export [post]
func (h *WorkoutHandler) ExportWorkouts(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	result, err := h.exportService.ExportWorkouts(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExportDisabled):
			abortWithError(c, http.StatusServiceUnavailable, "Workout export is not available")
		case errors.Is(err, service.ErrExportFailed):
			abortWithError(c, http.StatusBadGateway, "Could not store export")
		default:
			h.serverError(c, "export workouts", err)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.CounterExports.Inc()
	}
	c.JSON(http.StatusCreated, result)
}

// --- helpers ---

func (h *WorkoutHandler) requireUser(c *gin.Context) (primitive.ObjectID, bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Not authorized")
		return primitive.NilObjectID, false
	}
	return userID, true
}

func (h *WorkoutHandler) handleWorkoutError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrWorkoutNotFound):
		abortWithError(c, http.StatusNotFound, "Workout not found")
	case errors.Is(err, domain.ErrInvalidWorkout):
		abortWithError(c, http.StatusBadRequest, strings.TrimPrefix(err.Error(), domain.ErrInvalidWorkout.Error()+": "))
	default:
		h.serverError(c, op, err)
	}
}

func (h *WorkoutHandler) serverError(c *gin.Context, op string, err error) {
	log.Errorf("%s: %v", op, err)
	_ = c.Error(err)
	abortWithError(c, http.StatusInternalServerError, "Server error")
}

// workoutIDParam reads :id. Malformed ids cannot match any workout, so they get a 404.
func workoutIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusNotFound, "Workout not found")
		return primitive.NilObjectID, false
	}
	return id, true
}

// parseWorkoutDate accepts a calendar date, taken as midnight in loc, or an RFC 3339 timestamp.
func parseWorkoutDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", value)
}

func validationMessage(err error) string {
	return "Validation error: " + err.Error()
}
