// cmd/api/main.go
// Main entry point for the application
// This file bootstraps all components and starts the server

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/common/database"
	"github.com/imadgeboyega/gratitude-backend/internal/common/logger"
	"github.com/imadgeboyega/gratitude-backend/internal/config"
	notifications "github.com/imadgeboyega/gratitude-backend/internal/notification"
	"github.com/imadgeboyega/gratitude-backend/internal/schedule"
	"github.com/imadgeboyega/gratitude-backend/internal/scheduler"
	"github.com/imadgeboyega/gratitude-backend/internal/storage/backend"
)

var startTime = time.Now()

func main() {
	// 1. Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "No .env file found (%v), using environment variables\n", err)
	}

	// 2. Load configuration
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *zap.Logger) error {
	// 3. Validate configuration
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Info("Configuration loaded", zap.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Open storage
	repo, err := backend.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	// 5. Connect to Redis (optional)
	redisClient := connectRedis(ctx, cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// 6. Notification collaborators
	smsService, err := newSMSService(cfg, log)
	if err != nil {
		return err
	}
	emailService, err := newEmailService(cfg, log)
	if err != nil {
		return err
	}
	prompts, err := newPromptGenerator(cfg, log)
	if err != nil {
		return err
	}

	// 7. Scheduler
	sched := scheduler.New(repo, prompts, smsService, notifications.NewSummaryMailer(emailService, log), scheduler.Config{
		Interval:    cfg.TickInterval,
		Matcher:     schedule.NewMatcher(cfg.MatchTolerance, schedule.ParseMatchMode(cfg.MatchMode)),
		SummaryDay:  cfg.SummaryWeekday,
		Concurrency: cfg.DispatchConcurrency,
		CallTimeout: cfg.ExternalCallTimeout,
	}, log.Named("scheduler"))

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		sched.Start(ctx)
	}()

	// 8. Routes and HTTP server
	router := newRouter(cfg, routerDeps{
		repo:  repo,
		jobs:  sched,
		redis: redisClient,
		log:   log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		stop()
		<-schedulerDone
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	<-schedulerDone
	return nil
}

// connectRedis returns nil when Redis is not configured or unreachable
func connectRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		log.Info("Redis URL not configured, webhook redelivery guard disabled")
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := database.NewRedisClientFromURL(pingCtx, cfg.RedisURL)
	if err != nil {
		log.Warn("Redis unavailable, continuing without it", zap.Error(err))
		return nil
	}
	log.Info("Connected to Redis")
	return client
}
