package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"alcyxob/routine-coach/internal/ai"
	"alcyxob/routine-coach/internal/api"
	"alcyxob/routine-coach/internal/cache"
	"alcyxob/routine-coach/internal/config"
	"alcyxob/routine-coach/internal/logging"
	"alcyxob/routine-coach/internal/metrics"
	"alcyxob/routine-coach/internal/repository/mongo"
	"alcyxob/routine-coach/internal/service"
	"alcyxob/routine-coach/internal/storage"
)

// @title Routine Coach API
// @version 1.0
// @description AI fitness coach: chat answers, generated workout routines and routine storage.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Routine Coach server...", zap.String("address", cfg.Server.Address))

	if cfg.JWT.Secret == "" {
		logger.Fatal("jwt.secret must be set")
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal("Could not connect to MongoDB", zap.Error(err))
	}
	defer func() {
		logger.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("Database connection established.", zap.String("database", cfg.Database.Name))

	// --- Ensure Indexes ---
	go func() { // Run index creation in background
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
			logger.Error("Index creation failed", zap.Error(err))
			return
		}
		logger.Info("Index creation process completed.")
	}()

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(registry)

	// --- Optional Redis (catalog cache + rate limiting) ---
	var catalogCache service.CatalogCache
	var limiter api.RateLimiter
	if cfg.Redis.Addr != "" {
		redisStore, err := cache.NewRedisStore(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis unavailable, running without cache and rate limiting", zap.Error(err))
		} else {
			defer redisStore.Close()
			catalogCache = redisStore
			limiter = redisStore
		}
	}

	// --- Optional archive of unparsed model responses ---
	var archive storage.FileStorage
	if cfg.S3.BucketName != "" {
		initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		archive, err = storage.NewS3Storage(initCtx, cfg.S3, logger)
		cancel()
		if err != nil {
			logger.Fatal("Failed to initialize S3 storage", zap.Error(err))
		}
	}

	// --- Model provider ---
	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		logger.Fatal("Invalid AI provider configuration", zap.Error(err))
	}
	if !provider.Configured() {
		// Requests report the configuration error themselves.
		logger.Warn("AI API key is not set; generation requests will fail", zap.String("provider", provider.Name()))
	}

	// --- Initialize Repositories ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	exerciseRepo := mongo.NewMongoExerciseRepository(appDB)
	routineRepo := mongo.NewMongoRoutineRepository(appDB)
	routineExerciseRepo := mongo.NewMongoRoutineExerciseRepository(appDB)
	exerciseSetRepo := mongo.NewMongoExerciseSetRepository(appDB)

	// --- Initialize Services ---
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.Auth.AdminEmails)
	profileService := service.NewProfileService(userRepo)
	exerciseService := service.NewExerciseService(exerciseRepo, catalogCache, logger)
	generationService := service.NewGenerationService(provider, userRepo, exerciseRepo, catalogCache, archive, cfg.AI, collector, logger)
	routineService := service.NewRoutineService(routineRepo, routineExerciseRepo, exerciseSetRepo, exerciseRepo, collector, logger)

	// --- Background sweep of incomplete routines ---
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go service.RunRoutineSweeper(sweepCtx, routineService, cfg.Routines.SweepInterval, cfg.Routines.SweepGrace, logger)

	// --- Initialize Gin Engine ---
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger), collector.HTTPMiddleware())

	opts := api.RouterOptions{
		JWTSecret: cfg.JWT.Secret,
		RateLimit: cfg.RateLimit,
		Limiter:   limiter,
		Logger:    logger,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = collector
	}
	api.SetupRoutes(router, api.Services{
		Auth:       authService,
		Profile:    profileService,
		Exercise:   exerciseService,
		Generation: generationService,
		Routine:    routineService,
	}, opts)

	// --- Start HTTP Server ---
	// WriteTimeout leaves room for the routine generation deadline.
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.AI.RoutineTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("ListenAndServe error", zap.Error(err))
		}
	}()
	logger.Info("Server started", zap.String("address", cfg.Server.Address))

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")
	stopSweeper()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting.")
}
