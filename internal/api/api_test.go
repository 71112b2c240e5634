package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"alcyxob/fitness-tracker/internal/api"
	"alcyxob/fitness-tracker/internal/metrics"
	"alcyxob/fitness-tracker/internal/repository/memory"
	"alcyxob/fitness-tracker/internal/service"
	"alcyxob/fitness-tracker/internal/stats"
	"alcyxob/fitness-tracker/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2024, time.March, 2, 12, 0, 0, 0, time.UTC)

type fakeStorage struct {
	objects map[string][]byte
}

func (f *fakeStorage) PutObject(ctx context.Context, objectKey string, contentType string, body []byte) error {
	f.objects[objectKey] = body
	return nil
}

func (f *fakeStorage) GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	return "https://storage.test/" + objectKey, nil
}

type testServer struct {
	router  *gin.Engine
	metrics *metrics.Manager
	reg     *prometheus.Registry
}

type serverOpts struct {
	fileStorage storage.FileStorage
	ratePerMin  int
	burst       int
	origins     []string
}

func newTestServer(t *testing.T, opts serverOpts) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authService := service.NewAuthService(memory.NewMemoryUserRepository(), "api-test-secret", time.Hour, service.WithBcryptCost(bcrypt.MinCost))
	workoutService := service.NewWorkoutService(memory.NewMemoryWorkoutRepository(), stats.NewAggregator(time.UTC), func() time.Time { return testNow })
	exportService := service.NewExportService(workoutService, opts.fileStorage, time.Minute)

	reg := prometheus.NewRegistry()
	manager := metrics.NewManager("fitness", "test", reg)

	if opts.origins == nil {
		opts.origins = []string{"*"}
	}

	router := gin.New()
	api.SetupRoutes(router, api.RouterConfig{
		CORSOrigins:       opts.origins,
		AuthRatePerMinute: opts.ratePerMin,
		AuthRateBurst:     opts.burst,
		StorageDriver:     "memory",
		Location:          time.UTC,
		MetricsHandler:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, authService, workoutService, exportService, manager)

	return &testServer{router: router, metrics: manager, reg: reg}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) register(t *testing.T, name, email string) api.AuthResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"name": name, "email": email, "password": "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.AuthResponse](t, rec)
}

func (s *testServer) createWorkout(t *testing.T, token string, body gin.H) map[string]any {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/workouts", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]any](t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	rec := s.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["storage"])
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	registered := s.register(t, "Jane", "jane@example.com")
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "jane@example.com", registered.Email)

	rec := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Jane", "email": "JANE@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Short", "email": "short@example.com", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["message"], "Validation error")

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "jane@example.com", "password": "wrong1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", decode[map[string]string](t, rec)["message"])

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "jane@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	loggedIn := decode[api.AuthResponse](t, rec)
	assert.Equal(t, registered.ID, loggedIn.ID)

	rec = s.do(t, http.MethodGet, "/api/auth/me", loggedIn.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]any](t, rec)
	assert.Equal(t, registered.ID, me["_id"])
	assert.NotContains(t, me, "passwordHash")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	for _, tc := range []struct{ method, path, token string }{
		{http.MethodGet, "/api/workouts", ""},
		{http.MethodGet, "/api/workouts/stats", "garbage"},
		{http.MethodGet, "/api/auth/me", ""},
	} {
		rec := s.do(t, tc.method, tc.path, tc.token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.NotEmpty(t, decode[map[string]string](t, rec)["message"])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/workouts", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWorkoutCRUD(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	token := s.register(t, "Jane", "jane@example.com").Token

	created := s.createWorkout(t, token, gin.H{
		"exerciseName":   "Morning Run",
		"exerciseType":   "cardio",
		"duration":       30,
		"caloriesBurned": 300,
		"distance":       5.2,
		"date":           "2024-03-01",
	})
	id, _ := created["_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "2024-03-01T00:00:00Z", created["date"])

	s.createWorkout(t, token, gin.H{"exerciseName": "Squats", "exerciseType": "strength", "duration": 40, "caloriesBurned": 0, "date": "2024-03-02T07:30:00Z"})

	rec := s.do(t, http.MethodGet, "/api/workouts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Squats", list[0]["exerciseName"])

	rec = s.do(t, http.MethodGet, "/api/workouts/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Morning Run", decode[map[string]any](t, rec)["exerciseName"])

	rec = s.do(t, http.MethodPut, "/api/workouts/"+id, token, gin.H{"duration": 35, "notes": "windy"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[map[string]any](t, rec)
	assert.EqualValues(t, 35, updated["duration"])
	assert.Equal(t, "windy", updated["notes"])
	assert.EqualValues(t, 300, updated["caloriesBurned"])

	rec = s.do(t, http.MethodPut, "/api/workouts/"+id, token, gin.H{"exerciseType": "dancing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/workouts/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Workout removed", decode[map[string]string](t, rec)["message"])

	rec = s.do(t, http.MethodGet, "/api/workouts/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateWorkoutValidation(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	token := s.register(t, "Jane", "jane@example.com").Token

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing name", gin.H{"exerciseType": "cardio", "duration": 10, "caloriesBurned": 10}},
		{"zero duration", gin.H{"exerciseName": "Run", "exerciseType": "cardio", "duration": 0, "caloriesBurned": 10}},
		{"missing calories", gin.H{"exerciseName": "Run", "exerciseType": "cardio", "duration": 10}},
		{"negative calories", gin.H{"exerciseName": "Run", "exerciseType": "cardio", "duration": 10, "caloriesBurned": -1}},
		{"unknown type", gin.H{"exerciseName": "Run", "exerciseType": "dancing", "duration": 10, "caloriesBurned": 10}},
		{"blank name", gin.H{"exerciseName": "   ", "exerciseType": "cardio", "duration": 10, "caloriesBurned": 10}},
		{"bad date", gin.H{"exerciseName": "Run", "exerciseType": "cardio", "duration": 10, "caloriesBurned": 10, "date": "03/02/2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/workouts", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rec)["message"])
		})
	}
}

func TestWorkoutOwnership(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	alice := s.register(t, "Alice", "alice@example.com").Token
	bob := s.register(t, "Bob", "bob@example.com").Token

	created := s.createWorkout(t, alice, gin.H{"exerciseName": "Swim", "exerciseType": "sports", "duration": 50, "caloriesBurned": 400})
	id := created["_id"].(string)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/workouts/"+id, bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/api/workouts/"+id, bob, gin.H{"duration": 1}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/workouts/"+id, bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/workouts/not-an-id", alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/workouts/"+primitive.NewObjectID().Hex(), alice, nil).Code)

	rec := s.do(t, http.MethodGet, "/api/workouts", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]map[string]any](t, rec))

	rec = s.do(t, http.MethodGet, "/api/workouts/stats", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[stats.Result](t, rec).TotalWorkouts)
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	token := s.register(t, "Jane", "jane@example.com").Token

	s.createWorkout(t, token, gin.H{"exerciseName": "Run", "exerciseType": "cardio", "duration": 30, "caloriesBurned": 300, "date": "2024-03-02"})
	s.createWorkout(t, token, gin.H{"exerciseName": "Lift", "exerciseType": "strength", "duration": 45, "caloriesBurned": 200, "date": "2024-03-01"})
	s.createWorkout(t, token, gin.H{"exerciseName": "Run", "exerciseType": "cardio", "duration": 20, "caloriesBurned": 150, "date": "2024-02-28"})

	rec := s.do(t, http.MethodGet, "/api/workouts/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"totalWorkouts", "totalCalories", "totalDuration", "streak", "workoutsByType", "last7Days"} {
		assert.Contains(t, raw, key)
	}

	res := decode[stats.Result](t, rec)
	assert.Equal(t, 3, res.TotalWorkouts)
	assert.Equal(t, 650, res.TotalCalories)
	assert.Equal(t, 95, res.TotalDuration)
	assert.Equal(t, 2, res.Streak)
	assert.Equal(t, map[string]int{"cardio": 2, "strength": 1}, res.WorkoutsByType)
	require.Len(t, res.Last7Days, 7)
	assert.Equal(t, "2024-02-25", res.Last7Days[0].Date.String())
	assert.Equal(t, "2024-03-02", res.Last7Days[6].Date.String())
	assert.Equal(t, 150, res.Last7Days[3].Calories)
	assert.Zero(t, res.Last7Days[4].Count)
	assert.Equal(t, 200, res.Last7Days[5].Calories)
}

func TestExportEndpoint(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, serverOpts{})
		token := s.register(t, "Jane", "jane@example.com").Token

		rec := s.do(t, http.MethodPost, "/api/workouts/export", token, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		store := &fakeStorage{objects: map[string][]byte{}}
		s := newTestServer(t, serverOpts{fileStorage: store})
		token := s.register(t, "Jane", "jane@example.com").Token
		s.createWorkout(t, token, gin.H{"exerciseName": "Run", "exerciseType": "cardio", "duration": 30, "caloriesBurned": 300})

		rec := s.do(t, http.MethodPost, "/api/workouts/export", token, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		res := decode[service.ExportResult](t, rec)
		assert.Contains(t, store.objects, res.ObjectKey)
		assert.Equal(t, "https://storage.test/"+res.ObjectKey, res.URL)
		assert.Equal(t, 1.0, testCounterValue(t, s.reg, "fitness_test_workout_exports_total"))
	})
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, serverOpts{ratePerMin: 1, burst: 2})

	body := gin.H{"email": "nobody@example.com", "password": "secret1"}
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/auth/login", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/auth/login", "", body).Code)

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Non-auth routes are not limited.
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/health", "", nil).Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, serverOpts{origins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/workouts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetricsAndRecovery(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.router.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := s.do(t, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1.0, testCounterValue(t, s.reg, "fitness_test_handler_panics_total"))

	token := s.register(t, "Jane", "jane@example.com").Token
	s.createWorkout(t, token, gin.H{"exerciseName": "Run", "exerciseType": "cardio", "duration": 30, "caloriesBurned": 300})
	assert.Equal(t, 1.0, testCounterValue(t, s.reg, "fitness_test_workouts_created_total"))

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fitness_test_requests_total{method="POST",route="/api/workouts",status="201"} 1`)

	rec = s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decode[map[string]string](t, rec)["message"])
}

func testCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestTokenForMissingUserIsRejected(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	// Same secret, separate user store: the token verifies but names nobody this server knows.
	elsewhere := service.NewAuthService(memory.NewMemoryUserRepository(), "api-test-secret", time.Hour, service.WithBcryptCost(bcrypt.MinCost))
	token, _, err := elsewhere.Register(context.Background(), "Ghost", "ghost@example.com", "secret1")
	require.NoError(t, err)

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/auth/me", nil},
		{http.MethodGet, "/api/workouts", nil},
		{http.MethodGet, "/api/workouts/stats", nil},
		{http.MethodPost, "/api/workouts", gin.H{"exerciseName": "Run", "exerciseType": "cardio", "duration": 10, "caloriesBurned": 10}},
	} {
		rec := s.do(t, tc.method, tc.path, token, tc.body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.Equal(t, "User not found", decode[map[string]string](t, rec)["message"], tc.path)
	}
	assert.Zero(t, testCounterValue(t, s.reg, "fitness_test_workouts_created_total"))
}
