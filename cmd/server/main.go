package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coursebridge/backend/config"
	"github.com/coursebridge/backend/internal/auth"
	"github.com/coursebridge/backend/internal/completions"
	"github.com/coursebridge/backend/internal/enrolments"
	"github.com/coursebridge/backend/internal/middleware"
	"github.com/coursebridge/backend/internal/platform"
	"github.com/coursebridge/backend/pkg/database"
	"github.com/coursebridge/backend/pkg/queue"
	"github.com/coursebridge/backend/pkg/redis"
	"github.com/coursebridge/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	redisClient, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	jobQueue := queue.New(redisClient)

	// Repositories.
	enrolRepo := enrolments.NewRepository(pool)
	userRepo := platform.NewUserRepository(pool)
	courseRepo := platform.NewCourseRepository(pool)
	roleRepo := platform.NewRoleRepository(pool)
	gradingRepo := platform.NewGradingRepository(pool)
	recompletionRepo := platform.NewRecompletionRepository(pool)
	authRepo := auth.NewRepository(pool)

	// Services.
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	enrolService := enrolments.NewService(enrolRepo, userRepo, courseRepo, roleRepo,
		recompletionRepo, cfg.Enrolment.RoleID, logger)
	completionService := completions.NewService(enrolRepo, gradingRepo, jobQueue,
		recompletionRepo, cfg.Completion.MaxBatch, logger)

	// Handlers.
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	enrolHandler := enrolments.NewHandler(enrolService, logger)
	completionHandler := completions.NewHandler(completionService, logger)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.POST("/auth/token", authHandler.Token)

	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(jwtService))
	{
		protected.POST("/enrolments",
			middleware.RequireCapability("enrol"), enrolHandler.Enrol)
		protected.PATCH("/enrolments/:id",
			middleware.RequireCapability("editenrolment"), enrolHandler.Edit)
		protected.DELETE("/enrolments/:id",
			middleware.RequireCapability("unenrol"), enrolHandler.Unenrol)
		protected.GET("/courses/:id/enrolments",
			middleware.RequireCapability("getenrolments"), enrolHandler.ListByCourse)
		protected.POST("/completions/query",
			middleware.RequireCapability("getcoursecompletions"), completionHandler.Query)
		protected.POST("/enrolments/:id/completion/reset",
			middleware.RequireCapability("resetcoursecompletion"), completionHandler.Reset)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
