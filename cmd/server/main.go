package main

import (
	"alcyxob/fitness-tracker/internal/api"
	"alcyxob/fitness-tracker/internal/config"
	"alcyxob/fitness-tracker/internal/logging"
	"alcyxob/fitness-tracker/internal/metrics"
	"alcyxob/fitness-tracker/internal/repository"
	"alcyxob/fitness-tracker/internal/repository/memory"
	"alcyxob/fitness-tracker/internal/repository/mongo"
	"alcyxob/fitness-tracker/internal/service"
	"alcyxob/fitness-tracker/internal/stats"
	"alcyxob/fitness-tracker/internal/storage"
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// @title Fitness Tracker API
// @version 1.0
// @description API for logging workouts and reading per-user training statistics.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	// --- Configuration ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	closeLog := logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.Log.File,
		LogToStdout:   cfg.Log.Stdout,
		LogLevel:      cfg.Log.Level,
		LogFormatJSON: cfg.Log.JSON,
	})
	defer func() {
		if err := closeLog(); err != nil {
			log.Errorf("close log file: %v", err)
		}
	}()
	log.Infof("starting fitness tracker server, storage driver: %s", cfg.Storage.Driver)

	loc, err := cfg.Stats.Location()
	if err != nil {
		log.Fatalf("invalid stats timezone: %v", err)
	}

	// --- Repositories ---
	var (
		userRepo    repository.UserRepository
		workoutRepo repository.WorkoutRepository
	)
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		dbClient, err := mongo.ConnectDB(context.Background(), cfg.Database.URI)
		if err != nil {
			log.Fatalf("could not connect to MongoDB: %v", err)
		}
		defer func() {
			log.Info("disconnecting MongoDB...")
			if err := mongo.DisconnectDB(dbClient); err != nil {
				log.Errorf("failed to disconnect MongoDB: %v", err)
			}
		}()
		appDB := dbClient.Database(cfg.Database.Name)
		log.Infof("connected to MongoDB database %s", cfg.Database.Name)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			mongo.EnsureIndexes(ctx, appDB)
		}()

		userRepo = mongo.NewMongoUserRepository(appDB)
		workoutRepo = mongo.NewMongoWorkoutRepository(appDB)
	default:
		log.Warn("using in-memory storage, data is lost on restart")
		userRepo = memory.NewMemoryUserRepository()
		workoutRepo = memory.NewMemoryWorkoutRepository()
	}

	// --- Object storage ---
	var fileStorage storage.FileStorage
	if cfg.S3.Enabled() {
		fileStorage, err = storage.NewS3Storage(context.Background(), cfg.S3)
		if err != nil {
			log.Fatalf("failed to initialize S3 storage: %v", err)
		}
		log.Infof("workout export enabled, bucket: %s", cfg.S3.BucketName)
	} else {
		log.Info("s3.bucket_name not set, workout export disabled")
	}

	// --- Services ---
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	workoutService := service.NewWorkoutService(workoutRepo, stats.NewAggregator(loc), time.Now)
	exportService := service.NewExportService(workoutService, fileStorage, cfg.Export.URLExpiry)

	metricsManager := metrics.NewManager("fitness", "tracker", prometheus.DefaultRegisterer)

	// --- HTTP ---
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	api.SetupRoutes(router, api.RouterConfig{
		CORSOrigins:       cfg.Server.CORSOrigins,
		AuthRatePerMinute: cfg.Auth.RatePerMinute,
		AuthRateBurst:     cfg.Auth.RateBurst,
		StorageDriver:     cfg.Storage.Driver,
		Location:          loc,
		MetricsHandler:    promhttp.Handler(),
	}, authService, workoutService, exportService, metricsManager)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infof("server listening on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen and serve: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}

	log.Info("server exiting")
}
