// Package worker drains the push queue into OneSignal and periodically
// times out pending bookings nobody accepted.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/booking-service/internal/booking/notify"
)

const (
	defaultMaxAttempts     = 5
	defaultDeliveryTimeout = 15 * time.Second
)

// Source hands out queue deliveries. *rabbitmq.Client implements it.
type Source interface {
	Consume(queue, consumerTag string, prefetch int) (<-chan amqp.Delivery, error)
}

// Deliverer sends one push to the provider. *channel.OneSignal implements it.
type Deliverer interface {
	Deliver(ctx context.Context, msg notify.PushMessage) error
}

// Sweeper times out overdue pending jobs. *orchestrator.Orchestrator
// implements it.
type Sweeper interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Config holds worker configuration
type Config struct {
	Logger          *slog.Logger
	Source          Source
	Deliverer       Deliverer
	Sweeper         Sweeper
	WorkerID        string
	Queue           string
	Concurrency     int
	PrefetchCount   int
	MaxAttempts     int
	DeliveryTimeout time.Duration
	SweepInterval   time.Duration
}

// Worker represents the background push worker
type Worker struct {
	logger          *slog.Logger
	source          Source
	deliverer       Deliverer
	sweeper         Sweeper
	workerID        string
	queue           string
	concurrency     int
	prefetchCount   int
	maxAttempts     int
	deliveryTimeout time.Duration
	sweepInterval   time.Duration

	tasks    chan *envelope
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	w := &Worker{
		logger:          cfg.Logger.With(slog.String("component", "push_worker")),
		source:          cfg.Source,
		deliverer:       cfg.Deliverer,
		sweeper:         cfg.Sweeper,
		workerID:        cfg.WorkerID,
		queue:           cfg.Queue,
		concurrency:     max(cfg.Concurrency, 1),
		prefetchCount:   cfg.PrefetchCount,
		maxAttempts:     cfg.MaxAttempts,
		deliveryTimeout: cfg.DeliveryTimeout,
		sweepInterval:   cfg.SweepInterval,
		tasks:           make(chan *envelope),
		stopChan:        make(chan struct{}),
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.deliveryTimeout <= 0 {
		w.deliveryTimeout = defaultDeliveryTimeout
	}
	if w.prefetchCount <= 0 {
		w.prefetchCount = w.concurrency
	}
	return w
}

// Start consumes the push queue until ctx is canceled. It returns an error
// when the consumer cannot be set up or the broker closes the delivery
// channel.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.String("queue", w.queue),
		slog.Int("concurrency", w.concurrency),
		slog.Int("max_attempts", w.maxAttempts),
		slog.Duration("delivery_timeout", w.deliveryTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)

	if w.sweeper != nil && w.sweepInterval > 0 {
		w.wg.Add(1)
		go w.runSweeper(ctx)
	}

	if !w.startMessageDispatcher(ctx, deliveries) {
		return fmt.Errorf("delivery channel for queue %s closed", w.queue)
	}
	return nil
}

// Stop gracefully stops the worker and waits for in-flight pushes
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
