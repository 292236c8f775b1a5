package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/booking-service/internal/worker/domain"
)

// deliveryCountHeader is set by quorum queues on every redelivery
const deliveryCountHeader = "x-delivery-count"

// envelope pairs a decoded task with the delivery that settles it
type envelope struct {
	task     *domain.PushTask
	delivery amqp.Delivery
}

// setupConsumer starts consuming the push queue with manual acknowledgement
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	deliveries, err := w.source.Consume(w.queue, w.workerID, w.prefetchCount)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.queue),
		slog.Int("prefetch_count", w.prefetchCount),
	)
	return deliveries, nil
}

// startMessageDispatcher decodes deliveries and hands them to the pool.
// It reports false when the delivery channel closed under it.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	w.logger.Info("Message dispatcher started", slog.String("worker_id", w.workerID))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return true

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return false
			}

			task, err := decodeTask(delivery)
			if err != nil {
				w.logger.Error("Dropping malformed push message",
					slog.String("error", err.Error()),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message", slog.String("error", nackErr.Error()))
				}
				continue
			}

			select {
			case w.tasks <- &envelope{task: task, delivery: delivery}:
				w.logger.Debug("Push dispatched to worker pool",
					slog.String("job_id", task.Message.JobID),
					slog.Uint64("delivery_tag", task.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching push")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown", slog.String("error", nackErr.Error()))
				}
				return true
			}
		}
	}
}

func decodeTask(d amqp.Delivery) (*domain.PushTask, error) {
	var task domain.PushTask
	if err := json.Unmarshal(d.Body, &task.Message); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if _, err := uuid.Parse(task.Message.JobID); err != nil {
		return nil, fmt.Errorf("%w: job_id %q is not a UUID", domain.ErrInvalidPayload, task.Message.JobID)
	}
	if len(task.Message.Recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", domain.ErrInvalidPayload)
	}
	task.DeliveryTag = d.DeliveryTag
	task.Attempt = attemptOf(d)
	return &task, nil
}

func attemptOf(d amqp.Delivery) int {
	switch n := d.Headers[deliveryCountHeader].(type) {
	case int64:
		return int(n) + 1
	case int32:
		return int(n) + 1
	case int:
		return n + 1
	}
	if d.Redelivered {
		return 2
	}
	return 1
}
