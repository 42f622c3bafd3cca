package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"alcyxob/routine-coach/internal/config"
	"alcyxob/routine-coach/internal/domain" // Needed for RoleMiddleware
	"alcyxob/routine-coach/internal/metrics"
	"alcyxob/routine-coach/internal/service"
)

// Services bundles the handlers' dependencies.
type Services struct {
	Auth       service.AuthService
	Profile    service.ProfileService
	Exercise   service.ExerciseService
	Generation service.GenerationService
	Routine    service.RoutineService
}

// RouterOptions carries the optional parts of the router. A nil Limiter
// disables rate limiting and a nil Metrics disables /metrics.
type RouterOptions struct {
	JWTSecret string
	RateLimit config.RateLimitConfig
	Limiter   RateLimiter
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

func SetupRoutes(router *gin.Engine, services Services, opts RouterOptions) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	authHandler := NewAuthHandler(services.Auth)
	profileHandler := NewProfileHandler(services.Profile)
	exerciseHandler := NewExerciseHandler(services.Exercise)
	generateHandler := NewGenerateHandler(services.Generation, logger)
	routineHandler := NewRoutineHandler(services.Routine, logger)

	authMiddleware := AuthMiddleware(opts.JWTSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// Chat works anonymously; routine generation checks the identity itself.
		apiV1.POST("/generate",
			OptionalAuthMiddleware(opts.JWTSecret, logger),
			RateLimitMiddleware(opts.Limiter, "generate", opts.RateLimit.GenerateRequests, opts.RateLimit.GenerateWindow, logger),
			generateHandler.Generate,
		)

		apiV1.GET("/exercises", exerciseHandler.GetExercises)
		apiV1.GET("/exercises/:id", exerciseHandler.GetExerciseByID)
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userID, "role": role})
		})

		protected.GET("/profile", profileHandler.GetProfile)
		protected.PUT("/profile", profileHandler.UpdateProfile)

		// POST /api/v1/exercises - Only admins maintain the catalog
		protected.POST("/exercises", RoleMiddleware(domain.RoleAdmin), exerciseHandler.CreateExercise)

		routineGroup := protected.Group("/routines")
		{
			routineGroup.POST("", routineHandler.CreateRoutine)
			routineGroup.GET("", routineHandler.GetRoutines)
			routineGroup.GET("/:id", routineHandler.GetRoutine)
			routineGroup.PUT("/:id", routineHandler.UpdateRoutine)
			routineGroup.DELETE("/:id", routineHandler.DeleteRoutine)
		}
	}
}
