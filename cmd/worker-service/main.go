package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/booking-service/internal/bootstrap"
	"github.com/cuongbtq/booking-service/internal/channel"
	"github.com/cuongbtq/booking-service/internal/config"
	"github.com/cuongbtq/booking-service/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := bootstrap.InitPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := bootstrap.InitRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	deps := bootstrap.CoreDeps{
		Config:    cfg,
		DB:        dbClient,
		Publisher: rabbitClient,
		Logger:    appLogger.Logger,
	}

	redisClient, err := bootstrap.InitRedis(&cfg.Redis, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		deps.Redis = redisClient
	}

	// The sweeper only pushes, texting happens in the api-service
	bookings, err := bootstrap.NewCore(deps)
	if err != nil {
		return fmt.Errorf("failed to build booking core: %w", err)
	}

	oneSignal, err := channel.NewOneSignal(channel.OneSignalConfig{
		BaseURL: cfg.Notification.Push.URL,
		AppID:   cfg.Notification.Push.AppID,
		APIKey:  cfg.Notification.Push.APIKey,
		Timeout: cfg.Notification.Push.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create push client: %w", err)
	}

	hostname, _ := os.Hostname()
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:          appLogger.Logger,
		Source:          rabbitClient,
		Deliverer:       oneSignal,
		Sweeper:         bookings,
		WorkerID:        fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8]),
		Queue:           cfg.RabbitMQ.PushQueue.Name,
		Concurrency:     cfg.Worker.Concurrency,
		PrefetchCount:   cfg.RabbitMQ.Consumer.PrefetchCount,
		MaxAttempts:     cfg.Worker.MaxAttempts,
		DeliveryTimeout: cfg.Worker.DeliveryTimeout,
		SweepInterval:   cfg.Booking.ExpirySweepInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case runErr = <-errChan:
		appLogger.Error("Worker error", slog.Any("error", runErr))
	}

	cancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return runErr
}
