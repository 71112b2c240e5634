package api

import (
	"alcyxob/fitness-tracker/internal/metrics"
	"alcyxob/fitness-tracker/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RouterConfig carries the HTTP-level settings SetupRoutes needs.
type RouterConfig struct {
	CORSOrigins []string
	// AuthRatePerMinute limits register/login per client IP; zero disables the limiter.
	AuthRatePerMinute int
	AuthRateBurst     int
	StorageDriver     string
	Location          *time.Location
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

func SetupRoutes(
	router *gin.Engine,
	cfg RouterConfig,
	authService service.AuthService,
	workoutService service.WorkoutService,
	exportService service.ExportService,
	metricsManager *metrics.Manager,
) {
	authHandler := NewAuthHandler(authService)
	workoutHandler := NewWorkoutHandler(workoutService, exportService, metricsManager, cfg.Location)

	router.Use(Recovery(metricsManager))
	router.Use(RequestLogger())
	if metricsManager != nil {
		router.Use(RequestMetrics(metricsManager))
	}
	router.Use(CORS(cfg.CORSOrigins))

	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "Route not found")
	})

	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"message": "Fitness Tracker API is running",
				"storage": cfg.StorageDriver,
			})
		})

		authGroup := api.Group("/auth")
		if cfg.AuthRatePerMinute > 0 {
			authGroup.Use(NewIPRateLimiter(cfg.AuthRatePerMinute, cfg.AuthRateBurst).Middleware())
		}
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		protected := api.Group("")
		protected.Use(AuthMiddleware(authService))
		{
			protected.GET("/auth/me", authHandler.Me)

			workouts := protected.Group("/workouts")
			{
				workouts.GET("", workoutHandler.ListWorkouts)
				workouts.POST("", workoutHandler.CreateWorkout)
				workouts.GET("/stats", workoutHandler.GetStats)
				workouts.POST("/export", workoutHandler.ExportWorkouts)
				workouts.GET("/:id", workoutHandler.GetWorkout)
				workouts.PUT("/:id", workoutHandler.UpdateWorkout)
				workouts.DELETE("/:id", workoutHandler.DeleteWorkout)
			}
		}
	}
}
