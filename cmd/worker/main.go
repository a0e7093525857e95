package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coursebridge/backend/config"
	"github.com/coursebridge/backend/internal/enrolments"
	"github.com/coursebridge/backend/internal/platform"
	"github.com/coursebridge/backend/internal/worker"
	"github.com/coursebridge/backend/pkg/database"
	"github.com/coursebridge/backend/pkg/queue"
	"github.com/coursebridge/backend/pkg/redis"
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

	redisClient, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	jobQueue := queue.New(redisClient)
	enrolRepo := enrolments.NewRepository(pool)
	gradingRepo := platform.NewGradingRepository(pool)

	sweeper := worker.NewSweeper(enrolRepo, cfg.Sweeper.Interval, logger)
	processor := worker.NewProcessor(jobQueue, gradingRepo, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		processor.Run(ctx)
	}()

	logger.Info("worker started")
	<-ctx.Done()
	wg.Wait()
	logger.Info("worker stopped")
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
