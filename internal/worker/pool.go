package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/booking-service/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned", slog.Int("worker_count", w.concurrency))
}

// workerLoop delivers pushes until the worker stops
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	log := w.logger.With(slog.String("worker_name", workerName))

	for {
		select {
		case <-w.stopChan:
			log.Debug("Worker goroutine stopping - stopChan closed")
			return

		case <-ctx.Done():
			log.Debug("Worker goroutine stopping - context canceled")
			return

		case env := <-w.tasks:
			w.settle(ctx, log, env)
		}
	}
}

// settle processes one push and acknowledges its delivery
func (w *Worker) settle(ctx context.Context, log *slog.Logger, env *envelope) {
	task := env.task
	log = log.With(
		slog.String("job_id", task.Message.JobID),
		slog.String("notification_type", string(task.Message.Kind)),
		slog.Uint64("delivery_tag", task.DeliveryTag),
		slog.Int("attempt", task.Attempt),
	)

	err := w.processTask(ctx, log, task)
	if err == nil {
		if ackErr := env.delivery.Ack(false); ackErr != nil {
			log.Error("Failed to ACK message", slog.String("error", ackErr.Error()))
			return
		}
		log.Info("Push delivered")
		return
	}

	requeue := shouldRequeue(err)
	log.Error("Push delivery failed",
		slog.String("error", err.Error()),
		slog.Bool("requeue", requeue),
	)
	if nackErr := env.delivery.Nack(false, requeue); nackErr != nil {
		log.Error("Failed to NACK message", slog.String("error", nackErr.Error()))
	}
}

// shouldRequeue determines if a push should be requeued based on the error type
func shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrMaxRetriesExceeded) || errors.Is(err, domain.ErrInvalidPayload) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
